package log

// Field names shared by every binary.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldVisitorID  = "visitor_id"
	FieldUsername   = "username"
	FieldUpstream   = "upstream"
	FieldDateFrom   = "date_from"
	FieldDateTo     = "date_to"
	FieldEventCount = "event_count"
	FieldEventTitle = "event_title"
	FieldEventType  = "event_type"
	FieldAmount     = "amount"
	FieldDialog     = "dialog"
	FieldNotifyKind = "notification"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAPI       = "api"
	ComponentDashboard = "dashboard"
	ComponentAuth      = "auth"
	ComponentEvents    = "events"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentMailer    = "mailer"
	ComponentDevAPI    = "devapi"
	ComponentCache     = "cache"
	ComponentTrace     = "trace"
	ComponentTemplate  = "template"
)

// Operation names.
const (
	OpLogin      = "login"
	OpLogout     = "logout"
	OpRegister   = "register"
	OpConfirm    = "confirm"
	OpReset      = "reset_password"
	OpDelete     = "delete_account"
	OpFetch      = "fetch"
	OpCreate     = "create"
	OpLoadDemo   = "load_demo"
	OpSuggest    = "suggest"
	OpTrim       = "trim_receipt"
	OpRender     = "render"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
	OpMigrate    = "migrate"
	OpValidation = "validate"
)

// Fields builds a key/value list for slog.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithRequestID(id string) Fields {
	f[FieldRequestID] = id
	return f
}

func (f Fields) WithVisitor(id, username string) Fields {
	f[FieldVisitorID] = id
	if username != "" {
		f[FieldUsername] = username
	}
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithRange(from, to string) Fields {
	f[FieldDateFrom] = from
	f[FieldDateTo] = to
	return f
}

func (f Fields) WithHTTPRequest(method, path, query string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// Args flattens the fields into slog key/value arguments.
func (f Fields) Args() []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}
