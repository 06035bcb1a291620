package services

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

// Catalog holds the fixed user-facing texts for one locale.
type Catalog struct {
	Tag language.Tag

	GateRejection     string
	RegisterFailure   string
	VisionFallback    string
	MealFallback      string
	ChatFallback      string
	VisionInstruction string

	// confirmFormat takes the order code and the formatted expiry date.
	confirmFormat string
	dateLayout    string
}

// Confirmation renders the registration acknowledgement.
func (c Catalog) Confirmation(orderRef string, expiresAt time.Time) string {
	return fmt.Sprintf(c.confirmFormat, orderRef, expiresAt.Format(c.dateLayout))
}

// FallbackFor returns the apology text for a failed generation of intent.
func (c Catalog) FallbackFor(intent domain.Intent) string {
	switch intent {
	case domain.IntentVisionRequest:
		return c.VisionFallback
	case domain.IntentMealReport:
		return c.MealFallback
	case domain.IntentOrderCode:
		return c.RegisterFailure
	default:
		return c.ChatFallback
	}
}

var (
	zhTW = Catalog{
		Tag:               language.MustParse("zh-TW"),
		GateRejection:     "您目前尚未開通服務，或服務已到期。\n請傳送您的訂單編號（9 至 10 位數字）來啟用教練服務。",
		RegisterFailure:   "抱歉，訂單登記暫時失敗，請稍後再傳送一次訂單編號，或聯繫客服協助。",
		VisionFallback:    "抱歉，暫時無法分析這張照片，請稍後再試一次。",
		MealFallback:      "抱歉，暫時無法分析您的餐點，請稍後再試一次。",
		ChatFallback:      "抱歉，系統暫時忙碌中，請稍後再試一次。",
		VisionInstruction: "請依照指示分析這張照片。",
		confirmFormat:     "訂單 %s 登記成功！\n服務有效期限至 %s。\n現在可以傳送餐點內容、身形照片或任何問題給我。",
		dateLayout:        "2006年1月2日",
	}
	en = Catalog{
		Tag:               language.English,
		GateRejection:     "You don't have an active subscription yet, or it has expired.\nPlease send your order number (9 to 10 digits) to activate coaching.",
		RegisterFailure:   "Sorry, we couldn't register your order right now. Please send the order number again later or contact support.",
		VisionFallback:    "Sorry, we couldn't analyze this photo right now. Please try again later.",
		MealFallback:      "Sorry, we couldn't review your meal right now. Please try again later.",
		ChatFallback:      "Sorry, the coach is busy right now. Please try again later.",
		VisionInstruction: "Please analyze this photo as instructed.",
		confirmFormat:     "Order %s registered!\nYour coaching access is valid until %s.\nSend me a meal, a body photo or any question.",
		dateLayout:        "January 2, 2006",
	}

	catalogs       = []Catalog{zhTW, en}
	catalogMatcher = language.NewMatcher([]language.Tag{zhTW.Tag, en.Tag})
)

// CatalogFor returns the closest supported catalog for tag. Unsupported
// locales get the Traditional Chinese catalog.
func CatalogFor(tag language.Tag) Catalog {
	_, idx, conf := catalogMatcher.Match(tag)
	if conf == language.No {
		return zhTW
	}
	return catalogs[idx]
}
