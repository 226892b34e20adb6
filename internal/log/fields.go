package log

// Attribute keys. Request keys match the access log, domain keys match the
// JSON field names of the API.
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"

	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"

	FieldUserID        = "user_id"
	FieldTransactionID = "tx_id"
	FieldCategoryID    = "category_id"
	FieldAmount        = "amount"
	FieldAutoCategory  = "auto_category"
	FieldMonth         = "month"
	FieldSheetsRef     = "sheets_ref"
)

// Components.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentTemplate    = "template"
	ComponentRateLimit   = "rate_limit"
	ComponentAuth        = "auth"
	ComponentTransaction = "transaction"
	ComponentBudget      = "budget"
	ComponentReport      = "report"
	ComponentClassifier  = "classifier"
	ComponentNotify      = "notify"
	ComponentStorage     = "storage"
	ComponentCache       = "cache"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
)

// Operations.
const (
	OpCreate   = "create"
	OpUpsert   = "upsert"
	OpClassify = "classify"
	OpRetrain  = "retrain"
	OpAlert    = "alert"
	OpRender   = "render"
)

// LogFields collects attributes before handing them to slog as pairs.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError is a no-op for a nil err.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID int64) LogFields {
	f[FieldUserID] = userID
	return f
}

func (f LogFields) WithTransaction(txID int64, categoryID int, amount string, auto bool) LogFields {
	f[FieldTransactionID] = txID
	f[FieldCategoryID] = categoryID
	f[FieldAmount] = amount
	f[FieldAutoCategory] = auto
	return f
}

// WithHTTPRequest skips empty user agent and referer values.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	if referer != "" {
		f[FieldReferer] = referer
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the map into slog key/value pairs. Order is unspecified.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
