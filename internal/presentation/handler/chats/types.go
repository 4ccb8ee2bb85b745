package chats

type startChatRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type startGroupRequest struct {
	Title     string  `json:"title" validate:"max=120"`
	MemberIDs []int64 `json:"member_ids" validate:"required,min=1,dive,gt=0"`
}

type startChatResponse struct {
	ID int64 `json:"id"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type markReadRequest struct {
	LastMessageID int64 `json:"last_message_id" validate:"gte=0"`
}

type markAllReadResponse struct {
	Updated int `json:"updated"`
}

type inviteRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,dive,gt=0"`
}

type inviteResponse struct {
	InvitedUserIDs []int64 `json:"invited_user_ids"`
}
