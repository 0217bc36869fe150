// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IndexTask 描述一次异步建索引任务：从对象存储读取 ObjectKey 并写入 Collection 对应的文档库。
type IndexTask struct {
	Collection string `json:"collection"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
	Size       int64  `json:"size"`
}

// Key 是任务的幂等键，同一集合中的同名文件视为同一个任务。
func (t IndexTask) Key() string {
	return t.Collection + ":" + t.FileName
}
