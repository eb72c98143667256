package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
)

// Обязательные поля события, в порядке проверки
const (
	FieldDeploymentID   = "deploymentid"
	FieldAPI            = "api"
	FieldAPIName        = "api.name"
	FieldResponseHeader = "responseHeader"
	FieldRequestHeader  = "requestHeader"
)

const (
	headerContentLength = "Content-Length"
	headerCache         = "X-Cache"
	cacheHit            = "HIT"
)

// ParseError - тело запроса не является JSON объектом
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed payload: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError - отсутствует обязательное поле
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// EventParser разбирает тело запроса и извлекает из него Event (Domain Service).
// Не имеет состояния.
type EventParser struct{}

// NewEventParser создает новый EventParser
func NewEventParser() *EventParser {
	return &EventParser{}
}

// Parse декодирует тело запроса в JSON объект.
// Числа сохраняются как json.Number, чтобы не терять их исходную запись.
func (p *EventParser) Parse(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("unexpected data after top-level value")}
	}

	payload, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &ParseError{Err: fmt.Errorf("top-level value is %s, want object", jsonKind(doc))}
	}

	return payload, nil
}

// Extract проверяет обязательные поля и вычисляет размеры запроса и ответа.
// Проверка останавливается на первом отсутствующем поле.
func (p *EventParser) Extract(payload map[string]interface{}) (*entity.Event, error) {
	// Пустая строка допустима: обязателен только строковый тип
	deploymentID, ok := payload[FieldDeploymentID].(string)
	if !ok {
		return nil, &ValidationError{Field: FieldDeploymentID}
	}

	api, ok := payload[FieldAPI].(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Field: FieldAPI}
	}
	apiName, ok := api["name"].(string)
	if !ok {
		return nil, &ValidationError{Field: FieldAPIName}
	}

	responseHeader, ok := payload[FieldResponseHeader].(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Field: FieldResponseHeader}
	}

	requestHeader, ok := payload[FieldRequestHeader].(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Field: FieldRequestHeader}
	}

	cached, _ := responseHeader[headerCache].(string)

	return &entity.Event{
		DeploymentID:          deploymentID,
		APIName:               apiName,
		RequestContentLength:  HeaderContentLength(requestHeader),
		ResponseContentLength: HeaderContentLength(responseHeader),
		ResponseCached:        cached == cacheHit,
		Payload:               payload,
	}, nil
}

// HeaderContentLength = Content-Length + длина сериализованных заголовков.
// Завышение размера на длину заголовков сохранено для совместимости
// с накопленной историей метрик.
func HeaderContentLength(header map[string]interface{}) int64 {
	declared := leadingInt(header[headerContentLength])
	if declared < 0 {
		declared = 0
	}
	serialized := int64(SerializedLength(header))
	// Content-Length задается клиентом, сумма не должна переполнить int64
	if declared > math.MaxInt64-serialized {
		declared = math.MaxInt64 - serialized
	}
	return declared + serialized
}

// leadingInt повторяет мягкое приведение к целому: берется числовой префикс
// строки, все остальное дает 0.
func leadingInt(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0
	case float64:
		return floatToInt(val)
	case string:
		return leadingIntFromString(val)
	default:
		return 0
	}
}

func leadingIntFromString(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\v\f\r")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && (isDigit(s[end]) || (s[end] == '_' && end > digitsStart && end+1 < len(s) && isDigit(s[end+1]))) {
		end++
	}
	if end == digitsStart {
		return 0
	}

	n, err := strconv.ParseInt(strings.ReplaceAll(s[:end], "_", ""), 10, 64)
	if err != nil {
		// при ErrRange n уже равен границе int64
		if errors.Is(err, strconv.ErrRange) {
			return n
		}
		return 0
	}
	return n
}

// floatToInt отбрасывает дробную часть с насыщением на границах int64
func floatToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
