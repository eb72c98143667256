package valueobject

// CounterName - имя счетчика в ключе хранилища
// "{prefix}:{deploymentId}:{counter}"
type CounterName string

const (
	CounterBytesIn      CounterName = "bytes_in"
	CounterBytesOut     CounterName = "bytes_out"
	CounterRequestsIn   CounterName = "num_requests_in"
	CounterRequestsOut  CounterName = "num_requests_out"
	CounterRequestsMisc CounterName = "num_requests_misc"
)

func (n CounterName) String() string {
	return string(n)
}

// AllCounterNames возвращает счетчики в порядке записи в хранилище
func AllCounterNames() []CounterName {
	return []CounterName{
		CounterBytesIn,
		CounterBytesOut,
		CounterRequestsIn,
		CounterRequestsOut,
		CounterRequestsMisc,
	}
}
