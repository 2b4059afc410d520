package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/fiapx/fiapx-autocrop-service/internal/domain/port"
	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := buildFailureEmail(n.from, notice)

	err := smtp.SendMail(addr, nil, n.from, []string{notice.UserEmail}, msg)
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", notice.UserEmail),
			zap.String("job_id", notice.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", notice.UserEmail),
		zap.String("job_id", notice.JobID),
		zap.String("error_kind", notice.ErrorKind),
	)
	return nil
}

func buildFailureEmail(from string, notice port.FailureNotice) []byte {
	subject := fmt.Sprintf("FIAP X - Auto-crop Failed [Job %s]", notice.JobID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We could not produce a cropped version of your video.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Video: %s\r\n"+
			"Reason: %s\r\n"+
			"Details: %s\r\n\r\n"+
			"%s\r\n\r\n"+
			"-- FIAP X Auto-crop Service",
		notice.JobID, notice.VideoKey, notice.ErrorKind, notice.ErrorMessage, hint(notice.ErrorKind),
	)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, notice.UserEmail, subject, body,
	))
}

func hint(kind string) string {
	switch kind {
	case "NoTrajectory":
		return "No person was visible long enough to follow. Make sure the subject's shoulders, hips and knees are in frame."
	case "OutputTooLarge":
		return "The requested crop is larger than the video. Request a smaller output size."
	case "MetadataUnavailable":
		return "The file could not be read as a video. Please upload it again."
	default:
		return "Please try again later or contact support."
	}
}
