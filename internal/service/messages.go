package service

const (
	ErrInternalMessage          = "Internal error"
	ErrInvalidEmailMessage      = "Invalid email"
	ErrInvalidPasswordMessage   = "Invalid password length"
	ErrInvalidNameMessage       = "Invalid display name length"
	ErrEmailTakenMessage        = "Email is already in use"
	ErrAccountNotFoundMessage   = "Account not found"
	ErrWrongPasswordMessage     = "Wrong password"
	ErrUnauthenticatedMessage   = "Unauthenticated"
	ErrPermissionDeniedMessage  = "Path is outside of your documents"
	ErrInvalidPathMessage       = "Invalid document path"
	ErrDocumentNotFoundMessage  = "Document not found"
	ErrInvalidTextMessage       = "Invalid text length"
	ErrTaskOwnerMessage         = "Task owner must be the signed-in user"
	ErrTaskFieldsMessage        = "Only the completed flag of a task can be changed"
	ErrTaskQueryMessage         = "Task queries must filter by userId"
	ErrUnsupportedQueryMessage  = "Unsupported query"
	ErrSearchDisabledMessage    = "Search is disabled"
	ErrEmptySearchQueryMessage  = "Search query is empty"
	ErrSubscriptionEndedMessage = "Subscription ended"
)
