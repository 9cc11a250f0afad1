package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"brieflycloud/internal/ai"
	"brieflycloud/internal/config"
	"brieflycloud/internal/model"
	"brieflycloud/internal/rag"
	"brieflycloud/internal/repository"
)

const defaultConversationTitle = "New Conversation"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrMessageEnqueue       = errors.New("message enqueue failed")
	ErrByokUnauthorized     = errors.New("model provider rejected your API key")
)

type ChatService struct {
	convRepo    *repository.ConversationRepository
	messageRepo *repository.MessageRepository
	chunkRepo   *repository.ChunkRepository
	userRepo    *repository.UserRepository
	usage       *UsageService
	publisher   AsyncPublisher
	history     HistoryCache
	llm         *ai.OpenAICompatibleClient
	llmCfg      config.LLMConfig
	embCfg      ai.EmbeddingConfig
	retrieval   config.RetrievalConfig
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uuid.UUID) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, conversationID uuid.UUID, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, conversationID uuid.UUID) error
	MarkDirty(ctx context.Context, conversationID uuid.UUID) error
	IsDirty(ctx context.Context, conversationID uuid.UUID) (bool, error)
}

type CreateConversationInput struct {
	UserID uuid.UUID
	Title  string
}

type SendMessageInput struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Content        string
	FileIDs        []uuid.UUID
}

// SourceRef points a cited answer back at the chunk it came from.
type SourceRef struct {
	ChunkID  uuid.UUID `json:"chunk_id"`
	FileID   uuid.UUID `json:"file_id"`
	FileName string    `json:"file_name"`
	Score    float64   `json:"score"`
}

type SendMessageResult struct {
	Messages []model.ChatMessage `json:"messages"`
	Model    string              `json:"model"`
	Sources  []SourceRef         `json:"sources,omitempty"`
}

func NewChatService(
	convRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	chunkRepo *repository.ChunkRepository,
	userRepo *repository.UserRepository,
	usage *UsageService,
	publisher AsyncPublisher,
	history HistoryCache,
	llm *ai.OpenAICompatibleClient,
	llmCfg config.LLMConfig,
	embCfg ai.EmbeddingConfig,
	retrieval config.RetrievalConfig,
) *ChatService {
	if llmCfg.HistoryLimit <= 0 {
		llmCfg.HistoryLimit = 10
	}
	if retrieval.TopK <= 0 {
		retrieval.TopK = rag.DefaultTopK
	}
	if retrieval.MinScore <= 0 {
		retrieval.MinScore = rag.DefaultMinScore
	}
	return &ChatService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		chunkRepo:   chunkRepo,
		userRepo:    userRepo,
		usage:       usage,
		publisher:   publisher,
		history:     history,
		llm:         llm,
		llmCfg:      llmCfg,
		embCfg:      embCfg,
		retrieval:   retrieval,
	}
}

func (s *ChatService) CreateConversation(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultConversationTitle
	}
	conv := &model.Conversation{UserID: input.UserID, Title: title}
	if err := s.convRepo.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) ListConversations(userID uuid.UUID) ([]model.Conversation, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.convRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteConversation(userID, conversationID uuid.UUID) error {
	if userID == uuid.Nil || conversationID == uuid.Nil {
		return ErrInvalidInput
	}
	conv, err := s.convRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if err := s.messageRepo.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.convRepo.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.history != nil {
		_ = s.history.DeleteHistory(context.Background(), conversationID)
	}
	return nil
}

// GetMessages serves history through the cache unless a recent write
// is still in flight through the persist queue.
func (s *ChatService) GetMessages(userID, conversationID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	if userID == uuid.Nil || conversationID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	conv, err := s.convRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	ctx := context.Background()
	if s.history != nil {
		dirty, err := s.history.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.history.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		if dirty, dirtyErr := s.history.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.history.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	turn, err := s.prepareTurn(ctx, input)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.Complete(ctx, turn.llmCfg, turn.prompt)
	if err != nil {
		return nil, s.mapLLMError(err, turn.byok)
	}
	return s.finishTurn(ctx, turn, answer)
}

// StreamMessage is SendMessage with the completion streamed through
// onChunk as it arrives.
func (s *ChatService) StreamMessage(ctx context.Context, input SendMessageInput, onChunk func(string) error) (*SendMessageResult, error) {
	turn, err := s.prepareTurn(ctx, input)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.StreamComplete(ctx, turn.llmCfg, turn.prompt, onChunk)
	if err != nil {
		return nil, s.mapLLMError(err, turn.byok)
	}
	return s.finishTurn(ctx, turn, answer)
}

// chatTurn carries everything prepared before the model call: the
// resolved config, the prompt, the enqueued user message, and the
// retrieval hits backing the citations.
type chatTurn struct {
	input       SendMessageInput
	llmCfg      ai.ChatConfig
	byok        bool
	prompt      []ai.ChatMessage
	userMessage model.ChatMessage
	sources     []SourceRef
	chunkIDs    []string
}

func (s *ChatService) prepareTurn(ctx context.Context, input SendMessageInput) (*chatTurn, error) {
	if input.UserID == uuid.Nil || input.ConversationID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	conv, err := s.convRepo.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if _, err := s.usage.CheckAndIncrement(input.UserID, model.UsageActionChatMessage, 1); err != nil {
		return nil, err
	}

	llmCfg, byok := s.resolveLLM(user)
	passages, sources, err := s.retrieve(ctx, input.UserID, content, input.FileIDs)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.ListRecent(input.ConversationID, s.llmCfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	prompt := buildPrompt(passages, history, content)

	if conv.Title == defaultConversationTitle {
		if err := s.convRepo.UpdateTitle(conv.ID, deriveTitle(content)); err != nil {
			return nil, err
		}
	}

	turn := &chatTurn{
		input:   input,
		llmCfg:  llmCfg,
		byok:    byok,
		prompt:  prompt,
		sources: sources,
	}
	for _, src := range sources {
		turn.chunkIDs = append(turn.chunkIDs, src.ChunkID.String())
	}

	turn.userMessage = model.ChatMessage{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           "user",
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}
	if s.history != nil {
		_ = s.history.MarkDirty(ctx, input.ConversationID)
		_ = s.history.DeleteHistory(ctx, input.ConversationID)
	}
	if err := s.publisher.Publish(ctx, turn.userMessage); err != nil {
		return nil, ErrMessageEnqueue
	}
	return turn, nil
}

func (s *ChatService) finishTurn(ctx context.Context, turn *chatTurn, answer string) (*SendMessageResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	assistant := model.ChatMessage{
		ID:             uuid.New(),
		ConversationID: turn.input.ConversationID,
		UserID:         turn.input.UserID,
		Role:           "assistant",
		Content:        answer,
		Model:          turn.llmCfg.Model,
		CreatedAt:      time.Now(),
	}
	if len(turn.chunkIDs) > 0 {
		if raw, err := json.Marshal(turn.chunkIDs); err == nil {
			assistant.ContextChunkIDs = raw
		}
	}
	if err := s.publisher.Publish(ctx, assistant); err != nil {
		return nil, ErrMessageEnqueue
	}
	if err := s.convRepo.Touch(turn.input.ConversationID); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		Messages: []model.ChatMessage{turn.userMessage, assistant},
		Model:    turn.llmCfg.Model,
		Sources:  turn.sources,
	}, nil
}

// retrieve embeds the question and pulls the best chunks through the
// vector index, then re-ranks and trims them to the context budget.
func (s *ChatService) retrieve(ctx context.Context, userID uuid.UUID, question string, fileIDs []uuid.UUID) ([]rag.Passage, []SourceRef, error) {
	queryVec, err := s.llm.Embed(ctx, s.embCfg, question)
	if err != nil {
		return nil, nil, s.mapLLMError(err, false)
	}

	hits, err := s.chunkRepo.SearchSimilar(userID, fileIDs, pgvector.NewVector(queryVec), rag.OverfetchLimit(s.retrieval.TopK))
	if err != nil {
		return nil, nil, err
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	byID := make(map[string]repository.ScoredChunk, len(hits))
	passages := make([]rag.Passage, 0, len(hits))
	for _, hit := range hits {
		id := hit.ID.String()
		byID[id] = hit
		passages = append(passages, rag.Passage{ID: id, Content: hit.Content, Score: hit.Score})
	}

	passages = rag.Rerank(question, passages, s.retrieval.MinScore, s.retrieval.TopK)
	passages = rag.FitBudget(passages, s.retrieval.ContextTokenBudget)

	sources := make([]SourceRef, 0, len(passages))
	for _, p := range passages {
		hit := byID[p.ID]
		sources = append(sources, SourceRef{
			ChunkID:  hit.ID,
			FileID:   hit.FileID,
			FileName: hit.FileName,
			Score:    p.Score,
		})
	}
	return passages, sources, nil
}

// resolveLLM picks the chat model for the user's tier. BYOK users with
// a key get their own credentials; without one they fall back to the
// stock pro model.
func (s *ChatService) resolveLLM(user *model.User) (ai.ChatConfig, bool) {
	cfg := ai.ChatConfig{
		BaseURL: s.llmCfg.BaseURL,
		APIKey:  s.llmCfg.APIKey,
		Model:   s.llmCfg.FreeModel,
	}
	switch user.Tier {
	case model.TierPro:
		cfg.Model = s.llmCfg.ProModel
	case model.TierProByok:
		cfg.Model = s.llmCfg.ProModel
		if strings.TrimSpace(user.ByokAPIKey) == "" {
			return cfg, false
		}
		cfg.APIKey = user.ByokAPIKey
		if user.ByokModel != "" {
			cfg.Model = user.ByokModel
		}
		if user.ByokBaseURL != "" {
			cfg.BaseURL = user.ByokBaseURL
		}
		return cfg, true
	}
	return cfg, false
}

// mapLLMError keeps upstream auth failures on BYOK credentials out of
// the generic 500 path; the user can fix their own key.
func (s *ChatService) mapLLMError(err error, byok bool) error {
	var apiErr *ai.APIError
	if byok && errors.As(err, &apiErr) && apiErr.IsAuth() {
		return ErrByokUnauthorized
	}
	return err
}

func buildPrompt(passages []rag.Passage, history []model.ChatMessage, question string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	if len(passages) > 0 {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: rag.SystemPrompt})
	} else {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: "You are a concise and helpful AI assistant."})
	}
	for _, item := range history {
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	if len(passages) > 0 {
		messages = append(messages, ai.ChatMessage{
			Role:    "user",
			Content: rag.UserPrompt(question, rag.BuildContext(passages)),
		})
	} else {
		messages = append(messages, ai.ChatMessage{Role: "user", Content: question})
	}
	return messages
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

// deriveTitle names a conversation after its first message.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) > 40 {
		title = strings.TrimSpace(string(runes[:40]))
	}
	if title == "" {
		return defaultConversationTitle
	}
	return title
}
