package transactions

import "strings"

const sampleLines = 20

// SeparatorDetector выбирает разделитель полей по строкам файла (первая строка является заголовком).
type SeparatorDetector func(lines []string) rune

// DetectFromHeader смотрит только на заголовок: точка с запятой, если она есть, иначе запятая.
func DetectFromHeader(lines []string) rune {
	if len(lines) > 0 && strings.ContainsRune(lines[0], ';') {
		return ';'
	}
	return ','
}

// DetectFromSample выбирает разделитель, который дает одинаковое число полей
// в заголовке и в первых строках данных. При равенстве решает DetectFromHeader.
func DetectFromSample(lines []string) rune {
	if len(lines) == 0 {
		return ','
	}

	sample := lines
	if len(sample) > sampleLines+1 {
		sample = sample[:sampleLines+1]
	}

	semicolon := consistency(sample, ";")
	comma := consistency(sample, ",")

	switch {
	case semicolon > comma:
		return ';'
	case comma > semicolon:
		return ','
	default:
		return DetectFromHeader(lines)
	}
}

func consistency(lines []string, sep string) int {
	expected := strings.Count(lines[0], sep)
	if expected == 0 {
		return 0
	}

	score := 0
	for _, line := range lines[1:] {
		if strings.Count(line, sep) == expected {
			score++
		}
	}
	return score
}

// DetectorByName возвращает детектор по имени режима: header или sample.
func DetectorByName(name string) (SeparatorDetector, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "header":
		return DetectFromHeader, true
	case "sample":
		return DetectFromSample, true
	default:
		return nil, false
	}
}
