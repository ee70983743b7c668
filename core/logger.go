package core

type (
	// Logger is any service that can record application events.
	// expected args: error, map[string]interface{}, Actor
	Logger interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
		Fatal(msg string, args ...interface{})
	}

	// Actor identifies the principal behind a logged event.
	Actor struct {
		ID   string
		Role string
	}
)
