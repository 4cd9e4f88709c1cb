package logrusx

import "github.com/sirupsen/logrus"

type requestIdHook struct {
	rIdCtxKey   interface{}
	rIdFieldKey string
}

var _ logrus.Hook = (*requestIdHook)(nil)

// NewRequestIdHook copies the value stored under requestIdContextKey in the entry
// context into the requestIdFieldKey field.
func NewRequestIdHook(requestIdContextKey interface{}, requestIdFieldKey string) *requestIdHook {
	return &requestIdHook{
		rIdCtxKey:   requestIdContextKey,
		rIdFieldKey: requestIdFieldKey,
	}
}

func (rih *requestIdHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (rih *requestIdHook) Fire(entry *logrus.Entry) error {
	defer func() {
		// A misbehaving context value must never break logging
		recover() //nolint:errcheck,gosec
	}()
	if entry == nil || entry.Context == nil || entry.Data == nil {
		return nil
	}

	if requestId := entry.Context.Value(rih.rIdCtxKey); requestId != nil {
		entry.Data[rih.rIdFieldKey] = requestId
	}

	return nil
}
