package model

import "time"

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 本地时间格式出现在 JSON 中。
type LocalTime time.Time

const localTimeLayout = "2006-01-02 15:04:05"

func (t LocalTime) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(localTimeLayout)+2)
	b = append(b, '"')
	b = time.Time(t).AppendFormat(b, localTimeLayout)
	return append(b, '"'), nil
}

// UnmarshalJSON 让缓存中的消息可以被读回。
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	parsed, err := time.ParseInLocation(`"`+localTimeLayout+`"`, string(data), time.Local)
	if err != nil {
		return err
	}
	*t = LocalTime(parsed)
	return nil
}
