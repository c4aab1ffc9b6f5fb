package models

import "time"

type ChatRequest struct {
	Content string `json:"content"`
}

type ChatResponse struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
