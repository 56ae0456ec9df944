//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-sync/domain"
)

// Transport is the protocol capability shared by the live hub
// connection and the simulated shared-store channel. The session holds
// exactly one active implementation, selected at start. Every inbound
// event a transport produces maps 1:1 onto the bus event kinds, so the
// session never needs to know which variant is active.
type Transport interface {
	Connect(ctx context.Context) error
	Join(ctx context.Context, username string) error
	SendMessage(ctx context.Context, msg domain.Message) error
	SendImage(ctx context.Context, msg domain.Message) error
	SetTyping(ctx context.Context, typing bool) error
	Close() error
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
