package notification

import (
	"fmt"
	"strings"

	"chainrelay/pkg/domain"
)

// PushContent renders the push title and body for a notification. The
// content never includes identifiers or hashes; redaction already happened
// when the document was built, so absent fields simply stay unmentioned.
func PushContent(n Notification) (title, body string) {
	switch n.Type {
	case TypeExposure:
		title = "Possible exposure"
		switch {
		case n.Condition != nil && n.ExposureDate != nil:
			body = fmt.Sprintf("A contact reported a positive %s result around %s.",
				conditionLabel(*n.Condition), n.ExposureDate.Format("January 2, 2006"))
		case n.Condition != nil:
			body = fmt.Sprintf("A contact reported a positive %s result.", conditionLabel(*n.Condition))
		case n.ExposureDate != nil:
			body = fmt.Sprintf("A contact reported a positive result around %s.",
				n.ExposureDate.Format("January 2, 2006"))
		default:
			body = "A contact reported a positive test result."
		}
	case TypeStatusUpdate:
		title = "Status update"
		body = "A contact in your exposure chain has since reported a negative result."
	case TypeReportDeleted:
		title = "Report withdrawn"
		body = "A report in your exposure chain was withdrawn by its owner."
	}
	return title, body
}

func conditionLabel(c domain.ConditionType) string {
	return strings.ReplaceAll(string(c), "_", " ")
}
