package ai

const (
	KindIncome  = "ingreso"
	KindExpense = "gasto"
)

// TransactionSnapshot описывает упрощенную запись операции, которая уходит в промпт.
type TransactionSnapshot struct {
	Fecha     string  `json:"fecha"`
	Tipo      string  `json:"tipo"`
	Categoria string  `json:"categoria"`
	Monto     float64 `json:"monto"`
}
