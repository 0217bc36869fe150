package service

import (
	"fmt"
	"strings"
)

// 各执行路径使用的固定提示词。
const (
	routerSystemPrompt = "You are a professional decision making query router bot for a chatbot system that decides whether a user's query requires a summary, requires context, or is a simple follow up that requires neither."

	contextSystemPrompt = "You are a professional Q/A responder for a chatbot system. You are responsible for responding to a user query using ONLY the context provided within the <context> tags."

	simpleSystemPrompt = "You are a professional greeting/gratitude/salutation/ follow up responder for a chatbot system. You are responsible for responding to simple queries that do not require context or summaries."

	mapSystemPrompt = "You are a professional corpus summarizer for a chatbot system. You are responsible for summarizing a chunk of text based on a user's query."

	reduceSystemPrompt = "You are a professional corpus summarizer for a chatbot system. You are responsible for combining multiple summaries into a final summary based on a user's query."
)

// noDocumentsAnswer 在摘要请求没有任何可用文档且模型也没有输出时返回。
const noDocumentsAnswer = "No documents are available to summarize."

func routerPrompt(query string) string {
	return fmt.Sprintf("Given a user's query, respond with ONLY ONE of these numbers:\n"+
		"(1) if the query requires a summary of multiple documents\n"+
		"(2) if the query requires context from documents to answer\n"+
		"(3) if the query is a simple follow up, greeting, or gratitude that requires neither summary nor context\n\n"+
		"Here is the query: %s", query)
}

func contextPrompt(query, contextText string) string {
	return fmt.Sprintf("You are given a user's query in the <query> field. Respond appropriately to the user's input using only the context in the <context> field:\n"+
		" <query>%s</query>\n <context>%s</context>", query, contextText)
}

func simplePrompt(query string) string {
	return fmt.Sprintf("Given a user's simple query, respond appropriately and professionally.\nHere is the query: %s", query)
}

func mapPrompt(query, chunk string) string {
	return fmt.Sprintf("You are given a user's query in the <query> field and a chunk of text in the <chunk> field. Summarize the chunk of text based on the user's query:\n"+
		" <query>%s</query>\n <chunk>%s</chunk>", query, chunk)
}

func reducePrompt(query string, analyses []string) string {
	return fmt.Sprintf("You are given a user's query in the <query> field and a list of summaries in the <summaries> field. Combine these summaries into a final summary that answers the user's query:\n"+
		" <query>%s</query>\n <summaries>%s</summaries>", query, formatAnalyses(analyses))
}

func formatAnalyses(analyses []string) string {
	if len(analyses) == 0 {
		return "(no documents available)"
	}
	var b strings.Builder
	for i, a := range analyses {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, a)
	}
	b.WriteString("\n")
	return b.String()
}
