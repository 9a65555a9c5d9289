package notifications

import (
	"fmt"
	"html"
	"time"
)

// Recipient is who an email goes to.
type Recipient struct {
	Name  string
	Email string
}

func (r Recipient) email(subject, body string) Email {
	return Email{ToName: r.Name, ToEmail: r.Email, Subject: subject, HTML: body}
}

func LessonRequested(teacher Recipient, studentName, language string, startsAt time.Time) Email {
	return teacher.email("New lesson request",
		fmt.Sprintf("<h1>New lesson request</h1><p>Hello %s,</p><p>%s would like a %s lesson on %s.</p><p>Please accept or decline it from your dashboard.</p>",
			html.EscapeString(teacher.Name), html.EscapeString(studentName), html.EscapeString(language), startsAt.Format(time.RFC1123)))
}

// LessonStatusChanged tells the student what happened to their request.
func LessonStatusChanged(student Recipient, teacherName, status string, startsAt time.Time) Email {
	teacher := html.EscapeString(teacherName)
	var line string
	switch status {
	case "scheduled":
		line = teacher + " has accepted your lesson."
	case "completed":
		line = teacher + " has marked your lesson as completed. You can now rate it."
	case "cancelled":
		line = "Your lesson with " + teacher + " has been cancelled. Any wallet payment was refunded."
	default:
		line = "Your lesson with " + teacher + " is now " + html.EscapeString(status) + "."
	}
	return student.email("Your lesson was "+status,
		fmt.Sprintf("<p>Hello %s,</p><p>%s</p><p>Lesson time: %s</p>",
			html.EscapeString(student.Name), line, startsAt.Format(time.RFC1123)))
}

func LessonReminder(to Recipient, otherParty, language, meetingURL string, startsAt time.Time) Email {
	return to.email("Reminder: your lesson starts in one hour",
		fmt.Sprintf("<p>Hello %s,</p><p>Your %s lesson with %s starts at %s.</p><p><a href=\"%s\">Join the lesson</a></p>",
			html.EscapeString(to.Name), html.EscapeString(language), html.EscapeString(otherParty),
			startsAt.Format(time.RFC1123), html.EscapeString(meetingURL)))
}

func PayoutDecided(teacher Recipient, amount, status string) Email {
	return teacher.email("Payout request "+status,
		fmt.Sprintf("<p>Hello %s,</p><p>Your payout request of $%s is now <strong>%s</strong>.</p>",
			html.EscapeString(teacher.Name), amount, html.EscapeString(status)))
}

func TeacherReviewed(teacher Recipient, status string) Email {
	body := "<p>Hello %s,</p><p>Your teacher application was <strong>%s</strong>.</p>"
	return teacher.email("Teacher application "+status, fmt.Sprintf(body, html.EscapeString(teacher.Name), html.EscapeString(status)))
}
