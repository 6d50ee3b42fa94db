package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"jishi/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "account"
const AdminSessionKey = "is_admin"

// VerifyInitData 校验 mini-app 的 init data 签名并返回解析后的字段。
// 签名方案：secret = HMAC_SHA256("WebAppData", botToken)，
// hash = hex(HMAC_SHA256(secret, 按 key 排序的 k=v 行))。
func VerifyInitData(botToken, raw string) (url.Values, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("init data 解析失败: %w", err)
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, fmt.Errorf("init data 缺少签名")
	}

	if !hmac.Equal([]byte(gotHash), []byte(computeInitDataHash(botToken, values))) {
		return nil, fmt.Errorf("init data 签名不匹配")
	}
	return values, nil
}

func computeInitDataHash(botToken string, values url.Values) string {
	lines := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		lines = append(lines, key+"="+values.Get(key))
	}
	sort.Strings(lines)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignInitData 按同一方案生成带签名的 init data（测试和本地联调用）
func SignInitData(botToken string, values url.Values) string {
	values.Set("hash", computeInitDataHash(botToken, values))
	return values.Encode()
}

type initDataUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
	Language  string `json:"language_code"`
}

// TelegramAuth 从请求里取 init data，验签后同步账号并挂到 context。
// required 为 false 时允许匿名通过（列表页的 viewer 标记按匿名处理）。
func TelegramAuth(accounts *services.AccountService, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Telegram-Init-Data")
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			abortOrNext(c, required)
			return
		}

		token := os.Getenv("BOT_TOKEN")
		var values url.Values
		var err error
		if token == "" {
			// 本地联调：没有 bot token 时跳过验签
			values, err = url.ParseQuery(raw)
		} else {
			values, err = VerifyInitData(token, raw)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "身份校验失败",
			})
			return
		}

		var user initDataUser
		if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
			abortOrNext(c, required)
			return
		}

		account, err := accounts.Sync(services.Profile{
			UserID:    user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			PhotoURL:  user.PhotoURL,
			Language:  user.Language,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "transient",
				"message": "服务暂时不可用",
			})
			return
		}

		c.Set(CheckUserKey, account)
		c.Next()
	}
}

func abortOrNext(c *gin.Context, required bool) {
	if required {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "需要登录",
		})
		return
	}
	c.Next()
}

// AdminRequired 管理接口要求已通过口令登录的会话
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if ok, _ := session.Get(AdminSessionKey).(bool); !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "需要管理员权限",
			})
			return
		}
		c.Next()
	}
}
