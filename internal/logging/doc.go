// Package logger provides leveled logging for locker commands.
//
// Console output is controlled by two flags:
//
//   - --verbose: shows info and warning messages
//   - --debug: shows everything, including debug details and errors
//
// Without flags only critical warnings are shown.
//
// When File is set, every message is also written there with a timestamp and
// level, regardless of the console flags. NewFileWriter returns a rotating
// writer (lumberjack) suitable for File.
//
//	log := logger.Logger{Verbose: verbose, Debug: debug, File: w}
//	log.Infof("Encrypted %d files", count)
//
// No message may contain passwords, tokens, keys or plaintext.
package logger
