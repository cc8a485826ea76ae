/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultHistoryLimit  = 50
	DefaultMaxChatLength = 300
)

// CategoryBingo tags the system announcement sent when a player completes a line.
const CategoryBingo = "bingo"

// ChatRecord is one entry of the chat log, as replayed to joining players.
type ChatRecord struct {
	Author         string      `json:"author"`
	AuthorIdentity string      `json:"authorIdentity"`
	Text           string      `json:"text"`
	Timestamp      int64       `json:"timestamp"`
	Categories     []string    `json:"categories"`
	Attachment     *Attachment `json:"attachment,omitempty"`
}

func (c ChatRecord) clone() ChatRecord {
	out := c
	out.Categories = slices.Clone(c.Categories)
	if out.Categories == nil {
		out.Categories = []string{}
	}
	if c.Attachment != nil {
		a := *c.Attachment
		out.Attachment = &a
	}
	return out
}

// History keeps the most recent chat records, oldest first.
type History struct {
	limit   int
	records []ChatRecord
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	return &History{
		limit:   limit,
		records: make([]ChatRecord, 0, limit),
	}
}

// Append stores a copy of rec, evicting the oldest records past the limit.
func (h *History) Append(rec ChatRecord) {
	h.records = append(h.records, rec.clone())

	if over := len(h.records) - h.limit; over > 0 {
		h.records = slices.Delete(h.records, 0, over)
	}
}

// All returns the stored records in insertion order.
func (h *History) All() []ChatRecord {
	out := make([]ChatRecord, len(h.records))
	for i, rec := range h.records {
		out[i] = rec.clone()
	}
	return out
}

func (h *History) Len() int {
	return len(h.records)
}

// SanitizeChatText collapses every whitespace run (newlines included) to a
// single space, trims the result and truncates it to maxLength code points.
func SanitizeChatText(raw string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxChatLength
	}

	text := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")

	return truncate(text, maxLength)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}

	return s
}
