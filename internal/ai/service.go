package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/transactions"
)

// MaxSnapshotRecords ограничивает число операций в промпте.
const MaxSnapshotRecords = 500

const ChatGreeting = "¡Hola! Soy FinancIA, tu asistente financiero. Puedes preguntarme sobre los datos que has subido. " +
	"Por ejemplo: \"¿Cuál fue mi gasto más grande?\" o \"¿En qué mes gasté más?\""

const FallbackChatReply = "Lo siento, he encontrado un problema. Intenta preguntar de otra manera."

type Service struct {
	client Client
}

// NewService создает сервис работы с AI-клиентом.
func NewService(client Client) *Service {
	return &Service{client: client}
}

// Insights запрашивает у модели Markdown-отчет по операциям.
func (s *Service) Insights(ctx context.Context, txs []transactions.Transaction) (string, string, []byte, error) {
	prompt, err := buildInsightsPrompt(txs)
	if err != nil {
		return "", "", nil, err
	}

	messages := []Message{
		{Role: RoleSystem, Content: "Eres un experto analista financiero. Responde en español y en formato Markdown."},
		{Role: RoleUser, Content: prompt},
	}

	content, raw, err := s.client.Chat(ctx, messages)
	if err != nil {
		return "", prompt, raw, err
	}

	text := stripFences(content)
	if text == "" {
		return "", prompt, raw, errors.New("ai response is empty")
	}

	return text, prompt, raw, nil
}

// Chat отвечает на вопрос пользователя с учетом истории диалога.
func (s *Service) Chat(ctx context.Context, txs []transactions.Transaction, history []Message, question string) (string, string, []byte, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", nil, errors.New("question is required")
	}

	instruction, err := buildChatInstruction(txs)
	if err != nil {
		return "", "", nil, err
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: instruction})
	for _, message := range history {
		if message.Role == RoleSystem {
			continue
		}
		messages = append(messages, message)
	}
	messages = append(messages, Message{Role: RoleUser, Content: question})

	content, raw, err := s.client.Chat(ctx, messages)
	if err != nil {
		return "", question, raw, err
	}

	reply := strings.TrimSpace(content)
	if reply == "" {
		return "", question, raw, errors.New("ai response is empty")
	}

	return reply, question, raw, nil
}

// Snapshot строит упрощенную проекцию первых MaxSnapshotRecords операций.
// Доходы идут со знаком плюс, расходы со знаком минус.
func Snapshot(txs []transactions.Transaction) []TransactionSnapshot {
	limit := len(txs)
	if limit > MaxSnapshotRecords {
		limit = MaxSnapshotRecords
	}

	out := make([]TransactionSnapshot, 0, limit)
	for _, tx := range txs[:limit] {
		kind := KindExpense
		if tx.IsIncome() {
			kind = KindIncome
		}

		out = append(out, TransactionSnapshot{
			Fecha:     tx.Date.Format("2006-01-02"),
			Tipo:      kind,
			Categoria: tx.Category,
			Monto:     tx.SignedAmount().InexactFloat64(),
		})
	}

	return out
}

// FallbackInsights собирает краткий отчет без модели, когда провайдер недоступен.
func FallbackInsights(result analysis.Result) string {
	var builder strings.Builder

	builder.WriteString("## Resumen General\n\n")
	fmt.Fprintf(&builder, "- Ingresos totales: %s\n", result.TotalIncome.StringFixed(2))
	fmt.Fprintf(&builder, "- Gastos totales: %s\n", result.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&builder, "- Balance neto: %s\n", result.NetBalance.StringFixed(2))

	if top, ok := result.TopCategory(); ok {
		fmt.Fprintf(&builder, "- Categoría con más gasto: %s (%s, %.1f%%)\n", top.Category, top.Total.StringFixed(2), result.CategoryShare(0))
	}

	builder.WriteString("\n_No se pudieron generar los insights con IA. Por favor, inténtalo de nuevo._\n")
	return builder.String()
}

func buildInsightsPrompt(txs []transactions.Transaction) (string, error) {
	payload, err := json.MarshalIndent(Snapshot(txs), "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Analiza los siguientes datos de transacciones (en formato JSON simplificado) de un usuario y proporciona un informe conciso en español y en formato Markdown.

En los datos, "monto" es positivo para ingresos y negativo para gastos.

El informe debe incluir:
1.  **Resumen General:** Una breve descripción de la salud financiera general basada en los datos (ingresos vs. gastos, balance neto).
2.  **Insights Clave:** 3 a 5 puntos destacados y fáciles de entender sobre patrones de gasto, las categorías más significativas, o tendencias a lo largo del tiempo.
3.  **Recomendaciones Accionables:** 3 a 5 consejos prácticos y realistas para que el usuario pueda optimizar sus gastos, aumentar sus ahorros o mejorar su gestión financiera.

Sé amigable, alentador y profesional en tu tono.

Datos de Transacciones:
%s`, string(payload))

	return prompt, nil
}

func buildChatInstruction(txs []transactions.Transaction) (string, error) {
	payload, err := json.MarshalIndent(Snapshot(txs), "", "  ")
	if err != nil {
		return "", err
	}

	instruction := fmt.Sprintf(`Eres un asistente financiero amigable y experto llamado 'FinancIA'. Tu propósito es responder preguntas del usuario basándote únicamente en los siguientes datos de transacciones. Sé conciso, claro y utiliza los datos para respaldar tus respuestas. No inventes información. Responde siempre en español.

En los datos, "monto" es positivo para ingresos y negativo para gastos.

DATOS DE TRANSACCIONES:
%s`, string(payload))

	return instruction, nil
}

func stripFences(input string) string {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "markdown")
	trimmed = strings.TrimPrefix(trimmed, "md")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	return strings.TrimSpace(trimmed)
}
