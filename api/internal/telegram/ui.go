package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/util"
)

const infoPrefix = "info:"

// Кнопка «подробнее» на каждую находку.
func findingsKeyboard(n int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < n; i++ {
		btn := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Подробнее о #%d", i+1), infoPrefix+strconv.Itoa(i))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatReport(r *pipeline.Report) string {
	var b strings.Builder
	if r.NoTumor {
		fmt.Fprintf(&b, "✅ Опухоль не обнаружена (уверенность %.0f%%).", r.Confidence*100)
		return b.String()
	}
	fmt.Fprintf(&b, "🧠 Найдено образований: %d\n", len(r.Findings))
	for i, f := range r.Findings {
		a := f.Impact
		c := f.Coordinates3D.Center()
		fmt.Fprintf(&b, "\n#%d %s · %s\n", i+1, typeName(string(f.TumorType)), f.BrainRegion)
		fmt.Fprintf(&b, "Уверенность %.0f%% · уровень %s", f.Confidence*100, a.Level())
		if a.Urgency != "" {
			fmt.Fprintf(&b, " · срочность %s", a.Urgency)
		}
		fmt.Fprintf(&b, "\nЦентр (x,y,z): %.2f, %.2f, %.2f · размер до %.1f см\n", c.X, c.Y, c.Z, pipeline.SizeOf(f).Largest())
		writeList(&b, "Когнитивные", a.CognitiveImpact)
		writeList(&b, "Моторные", a.MotorImpact)
		writeList(&b, "Сенсорные", a.SensoryImpact)
		if s := strings.TrimSpace(a.PotentialEffects); s != "" {
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nЭто не диагноз. Задайте вопрос текстом или нажмите кнопку ниже.")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ": " + strings.Join(items, ", ") + "\n")
}

func typeName(t string) string {
	if t == "" {
		return "unclassified"
	}
	return t
}

// Telegram режет сообщения на 4096 символах.
func trimText(s string) string { return util.Truncate(s, 3900) }
