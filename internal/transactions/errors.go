package transactions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrMissingColumns = errors.New("missing required columns")
)

// EmptyInputError возвращается, когда в файле нет заголовка и хотя бы одной строки данных.
type EmptyInputError struct {
	Lines int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("file is empty or has no data rows: a header and at least one data row are required (found %d line(s))", e.Lines)
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// MissingColumnsError перечисляет отсутствующие обязательные колонки и найденные колонки.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf(
		"file must contain at least the columns %s; missing: %s; columns found: %s",
		strings.Join(requiredColumns, ", "),
		strings.Join(e.Missing, ", "),
		strings.Join(e.Found, ", "),
	)
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}
