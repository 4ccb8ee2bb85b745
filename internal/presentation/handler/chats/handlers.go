package chats

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/bus"
	"github.com/hansol-oss/intrachat/internal/infrastructure/configs"
	"github.com/hansol-oss/intrachat/internal/infrastructure/json"
	"github.com/hansol-oss/intrachat/internal/infrastructure/sse"
	"github.com/hansol-oss/intrachat/internal/infrastructure/storage"
	"github.com/hansol-oss/intrachat/internal/infrastructure/ws"
	"github.com/hansol-oss/intrachat/internal/presentation/utils"
	"go.uber.org/zap"
)

type Handler struct {
	chatRepository    domain.ChatRepository
	messageRepository domain.MessageRepository
	bus               *bus.Bus
	streamer          *sse.Streamer
	gateway           *ws.Gateway
	storage           *storage.LocalStorage
	logger            *zap.SugaredLogger
	cfg               configs.ChatConfig
	validate          *validator.Validate
}

func NewHandler(
	chatRepository domain.ChatRepository,
	messageRepository domain.MessageRepository,
	eventBus *bus.Bus,
	streamer *sse.Streamer,
	gateway *ws.Gateway,
	fileStorage *storage.LocalStorage,
	logger *zap.SugaredLogger,
	cfg configs.ChatConfig,
) *Handler {
	return &Handler{
		chatRepository:    chatRepository,
		messageRepository: messageRepository,
		bus:               eventBus,
		streamer:          streamer,
		gateway:           gateway,
		storage:           fileStorage,
		logger:            logger,
		cfg:               cfg,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
}

// chatIDParam parses the {chatId} route parameter.
func chatIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "chatId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("chat ID is missing or invalid")
	}
	return id, nil
}

// requireMember resolves the route's chat and rejects non-members. Every
// chat-scoped route goes through here.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request) (chatID, userID int64, ok bool) {
	chatID, err := chatIDParam(r)
	if err != nil {
		json.WriteValidationError(w, err)
		return 0, 0, false
	}

	userID = utils.GetUserID(r)

	member, err := h.chatRepository.IsMember(r.Context(), chatID, userID)
	if err != nil {
		h.logger.Errorw("membership lookup failed", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return 0, 0, false
	}
	if !member {
		json.WriteForbiddenError(w, "You are not a member of this chat")
		return 0, 0, false
	}
	return chatID, userID, true
}

func (h *Handler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)

	summaries, err := h.chatRepository.Summaries(r.Context(), userID, h.cfg.UnreadWindow)
	if err != nil {
		h.logger.Errorw("failed to list conversations", "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	// degraded clients poll this endpoint at the advertised cadence
	w.Header().Set("X-Poll-Interval", strconv.Itoa(int(h.cfg.PollInterval.Seconds())))
	json.WriteData(w, http.StatusOK, summaries)
}

func (h *Handler) StartChatHandler(w http.ResponseWriter, r *http.Request) {
	var req startChatRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	userID := utils.GetUserID(r)

	chatID, err := h.chatRepository.StartDirect(r.Context(), userID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSelfChat):
			json.WriteBadRequestError(w, "Cannot start a chat with yourself")
		default:
			h.logger.Errorw("failed to start direct chat", "user_id", userID, "other", req.UserID, "error", err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.WriteData(w, http.StatusOK, startChatResponse{ID: chatID})
}

func (h *Handler) StartGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req startGroupRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	userID := utils.GetUserID(r)

	chatID, err := h.chatRepository.StartGroup(r.Context(), userID, strings.TrimSpace(req.Title), req.MemberIDs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTooFewMembers):
			json.WriteBadRequestError(w, "A group chat needs at least one other member")
		default:
			h.logger.Errorw("failed to start group chat", "user_id", userID, "error", err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.WriteData(w, http.StatusOK, startChatResponse{ID: chatID})
}

func (h *Handler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	messages, err := h.messageRepository.ListRecent(r.Context(), chatID, days)
	if err != nil {
		h.logger.Errorw("failed to list messages", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	json.WriteData(w, http.StatusOK, messages)
}

func (h *Handler) AroundHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	messageID, err := strconv.ParseInt(q.Get("messageId"), 10, 64)
	if err != nil || messageID <= 0 {
		json.WriteValidationError(w, errors.New("messageId query parameter is required"))
		return
	}
	before, _ := strconv.Atoi(q.Get("before"))
	after, _ := strconv.Atoi(q.Get("after"))

	messages, err := h.messageRepository.Around(r.Context(), chatID, messageID, before, after)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			json.WriteNotFoundError(w, "Message not found")
		default:
			h.logger.Errorw("failed to load message context", "chat_id", chatID, "user_id", userID, "message_id", messageID, "error", err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.WriteData(w, http.StatusOK, messages)
}

func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	if term == "" {
		json.WriteValidationError(w, errors.New("q query parameter is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	messages, err := h.messageRepository.Search(r.Context(), chatID, term, limit, offset)
	if err != nil {
		h.logger.Errorw("message search failed", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	json.WriteData(w, http.StatusOK, messages)
}

func (h *Handler) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	members, err := h.chatRepository.Members(r.Context(), chatID, userID)
	if err != nil {
		h.logger.Errorw("failed to list members", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	json.WriteData(w, http.StatusOK, members)
}

func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := h.validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	message, err := h.createMessage(r, chatID, userID, req.Content, nil)
	if err != nil {
		h.logger.Errorw("failed to create message", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	json.WriteData(w, http.StatusCreated, message)
}

func (h *Handler) AttachHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.storage.MaxBytes()); err != nil {
		json.WriteValidationError(w, errors.New("invalid multipart form"))
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	files := r.MultipartForm.File["files"]
	if content == "" && len(files) == 0 {
		json.WriteValidationError(w, storage.ErrNoFileUploaded)
		return
	}

	attachments := make([]domain.ChatAttachment, 0, len(files))
	saved := make([]string, 0, len(files))
	for _, file := range files {
		webPath, err := h.storage.SaveAttachment(file)
		if err != nil {
			for _, path := range saved {
				_ = h.storage.Delete(path)
			}
			switch {
			case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrExtNotAllowed):
				json.WriteBadRequestError(w, err.Error())
			default:
				h.logger.Errorw("failed to store attachment", "chat_id", chatID, "user_id", userID, "error", err)
				json.WriteInternalError(w, err)
			}
			return
		}
		saved = append(saved, webPath)

		mime := file.Header.Get("Content-Type")
		attachments = append(attachments, domain.ChatAttachment{
			FileName: file.Filename,
			FilePath: webPath,
			MimeType: &mime,
			Size:     file.Size,
		})
	}

	message, err := h.createMessage(r, chatID, userID, content, attachments)
	if err != nil {
		for _, path := range saved {
			_ = h.storage.Delete(path)
		}
		h.logger.Errorw("failed to create attachment message", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	json.WriteData(w, http.StatusCreated, message)
}

// createMessage persists a message and fans it out to every member.
func (h *Handler) createMessage(r *http.Request, chatID, userID int64, content string, attachments []domain.ChatAttachment) (*domain.ChatMessage, error) {
	if max := h.cfg.MaxContentLength; max > 0 {
		if runes := []rune(content); len(runes) > max {
			content = string(runes[:max])
		}
	}

	message := &domain.ChatMessage{
		ChatID:   chatID,
		SenderID: userID,
	}
	if content != "" {
		message.Content = &content
	}

	if err := h.messageRepository.Create(r.Context(), message, attachments); err != nil {
		return nil, err
	}

	senderName, err := h.chatRepository.DisplayName(r.Context(), userID)
	if err == nil && senderName != "" {
		message.SenderName = &senderName
	}

	memberIDs, err := h.chatRepository.MemberIDs(r.Context(), chatID)
	if err != nil {
		h.logger.Errorw("member lookup failed, message not fanned out", "chat_id", chatID, "error", err)
		return message, nil
	}
	h.bus.Publish(memberIDs, domain.NewMessageEvent(chatID, *message))

	return message, nil
}

func (h *Handler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	var req markReadRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.chatRepository.MarkRead(r.Context(), chatID, userID, req.LastMessageID); err != nil {
		h.logger.Errorw("failed to mark chat read", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	if req.LastMessageID > 0 {
		if memberIDs, err := h.chatRepository.MemberIDs(r.Context(), chatID); err == nil {
			h.bus.Publish(memberIDs, domain.NewReadEvent(chatID, userID, req.LastMessageID))
		}
	}

	json.WriteSuccess(w)
}

func (h *Handler) MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)

	watermarks, err := h.chatRepository.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Errorw("failed to mark all chats read", "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	for _, mark := range watermarks {
		memberIDs, err := h.chatRepository.MemberIDs(r.Context(), mark.ChatID)
		if err != nil {
			continue
		}
		h.bus.Publish(memberIDs, domain.NewReadEvent(mark.ChatID, userID, mark.LastMessageID))
	}

	json.WriteData(w, http.StatusOK, markAllReadResponse{Updated: len(watermarks)})
}

func (h *Handler) InviteHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	added, err := h.chatRepository.Invite(r.Context(), chatID, req.UserIDs)
	if err != nil {
		h.logger.Errorw("failed to invite members", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	if len(added) > 0 {
		inviterName, _ := h.chatRepository.DisplayName(r.Context(), userID)
		addedNames := make([]string, 0, len(added))
		for _, id := range added {
			name, _ := h.chatRepository.DisplayName(r.Context(), id)
			addedNames = append(addedNames, name)
		}

		if memberIDs, err := h.chatRepository.MemberIDs(r.Context(), chatID); err == nil {
			h.bus.Publish(memberIDs, domain.NewMembersInvitedEvent(chatID, userID, inviterName, added, addedNames))
		}
	}

	json.WriteData(w, http.StatusOK, inviteResponse{InvitedUserIDs: added})
}

func (h *Handler) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	// snapshot before the delete so the leaver gets the event too
	memberIDs, err := h.chatRepository.MemberIDs(r.Context(), chatID)
	if err != nil {
		h.logger.Errorw("member lookup failed", "chat_id", chatID, "error", err)
		json.WriteInternalError(w, err)
		return
	}
	leaverName, _ := h.chatRepository.DisplayName(r.Context(), userID)

	if err := h.chatRepository.Leave(r.Context(), chatID, userID); err != nil {
		h.logger.Errorw("failed to leave chat", "chat_id", chatID, "user_id", userID, "error", err)
		json.WriteInternalError(w, err)
		return
	}

	h.bus.Publish(memberIDs, domain.NewMemberLeftEvent(chatID, userID, leaverName))

	json.WriteSuccess(w)
}

func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)

	if err := h.streamer.ServeUser(w, r, userID); err != nil {
		if errors.Is(err, sse.ErrStreamingUnsupported) {
			json.WriteError(w, http.StatusInternalServerError, err, "Streaming is not supported on this connection")
			return
		}
		h.logger.Errorw("event stream ended with error", "user_id", userID, "error", err)
	}
}

func (h *Handler) StreamWSHandler(w http.ResponseWriter, r *http.Request) {
	userID := utils.GetUserID(r)

	if err := h.gateway.ServeUser(w, r, userID); err != nil {
		// the upgrader has already written its own response on failure
		h.logger.Warnw("websocket stream ended with error", "user_id", userID, "error", err)
	}
}
