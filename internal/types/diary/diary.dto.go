package diary

import "github.com/google/uuid"

type CreateDiaryRequest struct {
	Title     string      `json:"title"`
	DiaryType DiaryType   `json:"diary_type"`
	MemberIDs []uuid.UUID `json:"member_ids,omitempty"`
}

type CreateEntryRequest struct {
	Content string `json:"content"`
}
