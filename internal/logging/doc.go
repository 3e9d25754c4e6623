// Package logging provides structured logging utilities for mailwarm.
//
// Every component logs through log/slog. This package keeps the attribute
// names consistent and makes sure sensitive values never reach the output:
//
//	logger := logging.WithMethod(slog.Default(), "gmail.send")
//	logger.Info("message sent",
//	    logging.Recipients(to),
//	    logging.Status(logging.StatusSuccess))
//
// Recipient addresses are hashed and OAuth tokens are reduced to a length
// indicator with SanitizeToken.
package logging
