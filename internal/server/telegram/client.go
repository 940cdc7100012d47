package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Error classes of the Telegram backend. Rejections (malformed request,
// bad token, oversized payload) are final; everything else is treated as
// a transient backend failure.
var (
	ErrBackendRejected    = errors.New("telegram rejected the request")
	ErrBackendUnavailable = errors.New("telegram request failed")
)

// Client uploads and downloads file chunks as Telegram documents. Every
// operation is keyed by a leased bot token; bots are constructed lazily
// per token and reused.
type Client struct {
	endpoint   string
	httpClient *http.Client

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// NewClient creates a client against the given Telegram API base URL
// (e.g. "https://api.telegram.org"). All bots share one HTTP client with
// a timeout generous enough for 20 MiB document transfers.
func NewClient(baseURL string) *Client {
	return &Client{
		endpoint: baseURL + "/bot%s/%s",
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		bots: make(map[string]*tgbotapi.BotAPI),
	}
}

func (c *Client) bot(token string) (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bot, ok := c.bots[token]; ok {
		return bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, c.endpoint, c.httpClient)
	if err != nil {
		return nil, classifyError(err)
	}
	c.bots[token] = bot
	return bot, nil
}

// Upload sends one chunk as a document to the storage's chat and returns
// the Telegram file id of the stored object.
func (c *Client) Upload(ctx context.Context, chatID int64, name string, data []byte, token string) (string, error) {
	bot, err := c.bot(token)
	if err != nil {
		return "", err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	msg, err := bot.Send(doc)
	if err != nil {
		return "", classifyError(err)
	}
	if msg.Document == nil {
		return "", fmt.Errorf("%w: no document in response", ErrBackendUnavailable)
	}

	return msg.Document.FileID, nil
}

// Download fetches the bytes of a previously uploaded chunk.
func (c *Client) Download(ctx context.Context, telegramFileID, token string) ([]byte, error) {
	bot, err := c.bot(token)
	if err != nil {
		return nil, err
	}

	url, err := bot.GetFileDirectURL(telegramFileID)
	if err != nil {
		return nil, classifyError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: status %d", ErrBackendRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return data, nil
}

// classifyError splits Telegram API failures into the rejected class
// (4xx, never retried) and the transient class.
func classifyError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return fmt.Errorf("%w: %s", ErrBackendRejected, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
