package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
	"github.com/tardnicus/wemb/internal/store"
)

const usage = `wemb watches the submission stream for posts matching your criteria.

/ping - check the bot is alive
/watch add <wts|wtb> [any|all] [min=N] <keyword ...> - add a criterion
/watch list - list all criteria
/watch del <id> - delete a criterion`

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Service is the Telegram admin surface for managing criteria.
type Service struct {
	config     *config.Config
	criteria   store.CriteriaStore
	bot        TelegramBot
	botFactory BotFactory
	cancel     context.CancelFunc
}

// NewService creates a new bot service
func NewService(cfg *config.Config, criteria store.CriteriaStore) *Service {
	return NewServiceWithFactory(cfg, criteria, defaultBotFactory)
}

// NewServiceWithFactory creates a bot service with a custom bot factory (for testing)
func NewServiceWithFactory(cfg *config.Config, criteria store.CriteriaStore, factory BotFactory) *Service {
	return &Service{
		config:     cfg,
		criteria:   criteria,
		botFactory: factory,
	}
}

// Start connects to Telegram and begins handling commands until ctx is
// cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	if s.config.TelegramToken == "" {
		return fmt.Errorf("telegram token is required")
	}

	bot, err := s.botFactory(s.config.TelegramToken)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	s.bot = bot
	logrus.Infof("Telegram bot authorized as @%s", bot.GetSelf().UserName)

	ctx, s.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := s.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				s.handleMessage(ctx, update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	logrus.Info("Telegram bot polling started")
	return nil
}

// Stop stops the bot
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.bot != nil {
		s.bot.StopReceivingUpdates()
	}
	logrus.Info("Telegram bot stopped")
}

func (s *Service) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if !s.isAllowed(msg.From.ID) {
		logrus.Warnf("Rejected Telegram message from %d (%s)", msg.From.ID, msg.From.UserName)
		return
	}
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "ping":
		s.reply(msg.Chat.ID, "pong")
	case "start", "help":
		s.reply(msg.Chat.ID, usage)
	case "watch":
		s.handleWatch(ctx, msg)
	}
}

func (s *Service) handleWatch(ctx context.Context, msg *tgbotapi.Message) {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) == 0 {
		s.reply(msg.Chat.ID, usage)
		return
	}

	switch fields[0] {
	case "add":
		s.handleAdd(ctx, msg.Chat.ID, fields[1:])
	case "list":
		s.handleList(ctx, msg.Chat.ID)
	case "del", "delete":
		s.handleDelete(ctx, msg.Chat.ID, fields[1:])
	default:
		s.reply(msg.Chat.ID, usage)
	}
}

func (s *Service) handleAdd(ctx context.Context, chatID int64, fields []string) {
	criterion, err := parseAddArguments(fields)
	if err != nil {
		s.reply(chatID, fmt.Sprintf("Cannot add criterion: %v", err))
		return
	}

	id, err := s.criteria.Add(ctx, criterion)
	if err != nil {
		logrus.Errorf("Failed to add criterion: %v", err)
		s.reply(chatID, "Failed to store the criterion, check the logs")
		return
	}

	criterion.ID = id
	s.reply(chatID, fmt.Sprintf("Added %s", criterion))
}

func (s *Service) handleList(ctx context.Context, chatID int64) {
	criteria, err := s.criteria.ListAll(ctx)
	if err != nil {
		logrus.Errorf("Failed to list criteria: %v", err)
		s.reply(chatID, "Failed to load criteria, check the logs")
		return
	}

	if len(criteria) == 0 {
		s.reply(chatID, "No criteria configured. Add one with /watch add.")
		return
	}

	var b strings.Builder
	for _, criterion := range criteria {
		fmt.Fprintf(&b, "%s\n", criterion)
	}
	s.reply(chatID, b.String())
}

func (s *Service) handleDelete(ctx context.Context, chatID int64, fields []string) {
	if len(fields) == 0 {
		s.reply(chatID, "Usage: /watch del <id>")
		return
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		s.reply(chatID, fmt.Sprintf("Invalid criterion id %q", fields[0]))
		return
	}

	if err := s.criteria.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reply(chatID, fmt.Sprintf("No criterion with id %d", id))
			return
		}
		logrus.Errorf("Failed to delete criterion %d: %v", id, err)
		s.reply(chatID, "Failed to delete the criterion, check the logs")
		return
	}

	s.reply(chatID, fmt.Sprintf("Deleted criterion #%d", id))
}

// parseAddArguments parses "/watch add" arguments: the submission type,
// then optional mode and min= tokens, then the keywords. Option tokens after
// the first keyword are treated as keywords themselves.
func parseAddArguments(fields []string) (models.Criterion, error) {
	if len(fields) == 0 {
		return models.Criterion{}, fmt.Errorf("missing submission type, expected wts or wtb")
	}

	submissionType, err := models.ParseSubmissionType(fields[0])
	if err != nil {
		return models.Criterion{}, err
	}

	allRequired := true
	minTransactions := models.DefaultMinTransactions

	rest := fields[1:]
	for len(rest) > 0 {
		switch {
		case rest[0] == "any":
			allRequired = false
		case rest[0] == "all":
			allRequired = true
		case strings.HasPrefix(rest[0], "min="):
			value := strings.TrimPrefix(rest[0], "min=")
			minTransactions, err = strconv.Atoi(value)
			if err != nil {
				return models.Criterion{}, fmt.Errorf("invalid minimum transaction count %q", value)
			}
		default:
			return models.NewCriterion(submissionType, minTransactions, rest, allRequired)
		}
		rest = rest[1:]
	}

	return models.NewCriterion(submissionType, minTransactions, nil, allRequired)
}

func (s *Service) isAllowed(userID int64) bool {
	if len(s.config.TelegramAllowedIDs) == 0 {
		return true
	}
	for _, id := range s.config.TelegramAllowedIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Service) reply(chatID int64, text string) {
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logrus.Errorf("Failed to send Telegram reply: %v", err)
	}
}
