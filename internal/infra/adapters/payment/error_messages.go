package payment

// userMessages maps provider error codes to the localized messages shown to
// the paying customer. Codes missing from the table fall back to a generic
// message so an unrecognized provider code never leaks internals to the user.
var userMessages = map[string]string{
	"ALREADY_PROCESSED_PAYMENT":          "이미 처리된 결제입니다.",
	"PROVIDER_ERROR":                     "결제사에서 오류가 발생했습니다. 잠시 후 다시 시도해주세요.",
	"EXCEED_MAX_CARD_INSTALLMENT_PLAN":   "설정 가능한 최대 할부 개월 수를 초과했습니다.",
	"INVALID_REQUEST":                    "잘못된 요청입니다.",
	"NOT_ALLOWED_POINT_USE":              "포인트 사용이 불가한 카드로 카드 포인트 결제에 실패했습니다.",
	"INVALID_API_KEY":                    "결제 설정에 문제가 있습니다. 관리자에게 문의해주세요.",
	"INVALID_REJECT_CARD":                "카드 사용이 거절되었습니다. 카드사에 문의해주세요.",
	"BELOW_MINIMUM_AMOUNT":               "결제 가능한 최소 금액 미만입니다.",
	"INVALID_CARD_EXPIRATION":            "카드 정보를 다시 확인해주세요. (유효기간)",
	"INVALID_STOPPED_CARD":               "정지된 카드입니다.",
	"EXCEED_MAX_DAILY_PAYMENT_COUNT":     "하루 결제 가능 횟수를 초과했습니다.",
	"NOT_SUPPORTED_INSTALLMENT_PLAN_CARD_OR_MERCHANT": "할부가 지원되지 않는 카드 또는 가맹점입니다.",
	"INVALID_CARD_INSTALLMENT_PLAN":      "할부 개월 정보가 잘못되었습니다.",
	"EXCEED_MAX_PAYMENT_AMOUNT":          "하루 결제 가능 금액을 초과했습니다.",
	"INVALID_CARD_LOST_OR_STOLEN":        "분실 혹은 도난 카드입니다.",
	"RESTRICTED_TRANSFER_ACCOUNT":        "계좌는 등록 후 12시간 뒤부터 결제할 수 있습니다.",
	"INVALID_CARD_NUMBER":                "카드번호를 다시 확인해주세요.",
	"NOT_AVAILABLE_PAYMENT":              "결제가 불가능한 시간대입니다.",
	"UNAPPROVED_ORDER_ID":                "아직 승인되지 않은 주문번호입니다.",
	"REJECT_ACCOUNT_PAYMENT":             "잔액 부족으로 결제에 실패했습니다.",
	"REJECT_CARD_PAYMENT":                "한도 초과 혹은 잔액 부족으로 결제에 실패했습니다.",
	"NOT_FOUND_PAYMENT":                  "존재하지 않는 결제 정보입니다.",
	"NOT_FOUND_PAYMENT_SESSION":          "결제 시간이 만료되어 결제 진행 데이터가 존재하지 않습니다.",
	"NOT_CANCELABLE_AMOUNT":              "취소할 수 없는 금액입니다.",
	"ALREADY_CANCELED_PAYMENT":           "이미 취소된 결제입니다.",
	"FORBIDDEN_REQUEST":                  "허용되지 않은 요청입니다.",
	"UNAUTHORIZED_KEY":                   "인증되지 않은 시크릿 키 혹은 클라이언트 키입니다.",
	"TIMEOUT":                            "결제사 응답이 지연되고 있습니다. 잠시 후 다시 시도해주세요.",
	"NETWORK_ERROR":                      "결제사와의 통신에 실패했습니다. 잠시 후 다시 시도해주세요.",
}

const genericUserMessage = "결제 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."

// UserMessage resolves the localized message for a provider error code.
func UserMessage(code string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return genericUserMessage
}
