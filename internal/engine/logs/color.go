package logs

import "fmt"

func SetGreen(s string) string  { return fmt.Sprintf("\033[32m%s\033[0m", s) }
func SetYellow(s string) string { return fmt.Sprintf("\033[33m%s\033[0m", s) }
func SetBlue(s string) string   { return fmt.Sprintf("\033[34m%s\033[0m", s) }

func SetBrightBlack(s string) string  { return fmt.Sprintf("\033[90m%s\033[0m", s) }
func SetBrightRed(s string) string    { return fmt.Sprintf("\033[91m%s\033[0m", s) }
func SetBrightYellow(s string) string { return fmt.Sprintf("\033[93m%s\033[0m", s) }

// PrintError and PrintWarn are the tags used in front of bootstrap log lines.
func PrintError() string { return SetBrightRed("error") }
func PrintWarn() string  { return SetBrightYellow("warning") }
