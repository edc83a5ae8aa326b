package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldChatID    = "chat_id"
	FieldCourseID  = "course_id"
	FieldSkipped   = "skipped_rows"
)
