package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldOwnerID       = "owner_id"
	FieldTransactionID = "transaction_id"
	FieldSourceID      = "source_id"
	FieldGoalID        = "goal_id"
	FieldBudgetID      = "budget_id"
	FieldKind          = "kind"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldJob           = "job"
	FieldRunID         = "run_id"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentLedger     = "ledger"
	ComponentRecurrence = "recurrence"
	ComponentAllocation = "allocation"
	ComponentScheduler  = "scheduler"
	ComponentNotify     = "notify"
	ComponentStorage    = "storage"
	ComponentCurrency   = "currency"
	ComponentAMQP       = "amqp"
	ComponentExport     = "export"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpMaterialize = "materialize"
	OpAllocate    = "allocate"
	OpExport      = "export"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of a ledger entry
func (f LogFields) WithTransaction(ownerID, id, kind, amount, currency string) LogFields {
	f[FieldOwnerID] = ownerID
	f[FieldTransactionID] = id
	f[FieldKind] = kind
	f[FieldAmount] = amount
	f[FieldCurrency] = currency
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
