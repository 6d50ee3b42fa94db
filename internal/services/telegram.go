package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"jishi/internal/models"
	"jishi/internal/utils"
)

// TelegramClient 同时实现 Notifier 和 Surface：
// 私信通知作者，审核内容带按钮发进审核群，裁决后原地改写消息。
type TelegramClient struct {
	token   string
	chatID  int64 // 审核群
	baseURL string
	client  *http.Client
}

// NewTelegramClient 从环境变量装配，BOT_TOKEN 为空时返回 nil（fail-open）
func NewTelegramClient() *TelegramClient {
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil
	}
	baseURL := os.Getenv("TELEGRAM_API_BASE")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	chatID, _ := strconv.ParseInt(os.Getenv("MODERATION_CHAT_ID"), 10, 64)
	return &TelegramClient{
		token:   token,
		chatID:  chatID,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// HasModerationChat 审核群没配时提交走 fail-open
func (c *TelegramClient) HasModerationChat() bool {
	return c.chatID != 0
}

type apiResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func (c *TelegramClient) call(method string, payload interface{}) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, out.Description)
	}
	return &out, nil
}

// Send 私信用户
func (c *TelegramClient) Send(userID int64, text string) error {
	_, err := c.call("sendMessage", map[string]interface{}{
		"chat_id": userID,
		"text":    text,
	})
	return err
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Present 把待审帖子发进审核群，按钮回调携带 (ticket, decision)
func (c *TelegramClient) Present(ticketID uint, post *models.Post, kind models.TicketKind, reason string) (string, error) {
	header := "📝 新帖待审"
	buttons := []inlineButton{
		{Text: "✅ 通过", CallbackData: fmt.Sprintf("decide:%d:approve", ticketID)},
		{Text: "❌ 拒绝", CallbackData: fmt.Sprintf("decide:%d:reject", ticketID)},
	}
	if kind == models.TicketKindReport {
		header = fmt.Sprintf("🚨 帖子被举报：%s", reason)
		buttons = []inlineButton{
			{Text: "👌 保留", CallbackData: fmt.Sprintf("decide:%d:keep", ticketID)},
			{Text: "🗑 删除", CallbackData: fmt.Sprintf("decide:%d:delete", ticketID)},
		}
	}

	text := fmt.Sprintf("%s\n\n分类：%s\n作者：%d\n\n%s", header, post.Category, post.AuthorID, post.Description)
	if post.IsEdit {
		text = "✏️ 修改稿\n" + text
	}

	resp, err := c.call("sendMessage", map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
		"reply_markup": map[string]interface{}{
			"inline_keyboard": [][]inlineButton{buttons},
		},
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.Result.MessageID, 10), nil
}

// Update 裁决后改写审核群消息、摘掉按钮
func (c *TelegramClient) Update(ref string, outcome string) error {
	messageID := utils.StringToInt(ref)
	if messageID == 0 {
		return fmt.Errorf("无效的消息引用 %q", ref)
	}
	_, err := c.call("editMessageText", map[string]interface{}{
		"chat_id":    c.chatID,
		"message_id": messageID,
		"text":       outcome,
	})
	return err
}
