package logger

// NullLogger discards everything; used where an operation needs a Logger
// but the caller (tests, a silent CLI flag) has nowhere to send it.
type NullLogger struct{}

// NewNullLogger builds a NullLogger.
func NewNullLogger() *NullLogger { return &NullLogger{} }

func (l *NullLogger) Debug(msg string, args ...any) {}
func (l *NullLogger) Info(msg string, args ...any)  {}
func (l *NullLogger) Warn(msg string, args ...any)  {}
func (l *NullLogger) Error(msg string, args ...any) {}
func (l *NullLogger) Time(msg string, args ...any)  {}

func (l *NullLogger) StartOperation(name string) OperationLogger { return nullOperation{} }

type nullOperation struct{}

func (nullOperation) Update(msg string, args ...any)   {}
func (nullOperation) Complete(msg string, args ...any) {}
func (nullOperation) Fail(msg string, args ...any)     {}
