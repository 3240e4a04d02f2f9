package delivery

import (
	"fmt"
	"math"
	"time"
)

// FormatMMSS renders d rounded up to whole seconds as MM:SS. Negative durations render as 00:00.
func FormatMMSS(d time.Duration) string {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

func CountdownText(label string, remaining time.Duration) string {
	return fmt.Sprintf("⏳ %s\nزمان باقی‌مانده: %s", label, FormatMMSS(remaining))
}

func DeletedText(label string) string {
	return fmt.Sprintf("⏳ %s\nحذف شد ✅", label)
}

func RedoPromptText(ttl time.Duration) string {
	return fmt.Sprintf("✅ فایل حذف شد.\nاگر دوباره لازم داری، اینجا بزن (%d ثانیه فرصت):", int(ttl/time.Second))
}

func RedoButtonText(ttl time.Duration) string {
	return fmt.Sprintf("⬇️ دانلود مجدد (%d ثانیه)", int(ttl/time.Second))
}
