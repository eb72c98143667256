package valueobject

import "errors"

// TrafficCategory представляет направление трафика API вызова (Value Object)
type TrafficCategory string

const (
	CategoryIn   TrafficCategory = "in"
	CategoryOut  TrafficCategory = "out"
	CategoryMisc TrafficCategory = "misc"
)

// Classify относит имя операции объектного хранилища к направлению трафика.
// Чистая функция: неизвестные операции всегда misc.
func Classify(apiName string) TrafficCategory {
	switch apiName {
	case "WebUpload", "PutObject", "DeleteObject":
		return CategoryIn
	case "WebDownload", "GetObject":
		return CategoryOut
	default:
		return CategoryMisc
	}
}

// Validate проверяет валидность категории
func (c TrafficCategory) Validate() error {
	switch c {
	case CategoryIn, CategoryOut, CategoryMisc:
		return nil
	default:
		return errors.New("invalid traffic category")
	}
}

// String возвращает строковое представление категории
func (c TrafficCategory) String() string {
	return string(c)
}

// RequestCounter возвращает счетчик запросов, который увеличивает категория
func (c TrafficCategory) RequestCounter() CounterName {
	switch c {
	case CategoryIn:
		return CounterRequestsIn
	case CategoryOut:
		return CounterRequestsOut
	default:
		return CounterRequestsMisc
	}
}

// AllTrafficCategories возвращает список всех категорий
func AllTrafficCategories() []TrafficCategory {
	return []TrafficCategory{CategoryIn, CategoryOut, CategoryMisc}
}
