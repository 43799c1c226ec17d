// Package action runs named project actions (save_config, generate_code,
// pio_init, patch, build, clean, validate_environment, start_editor) against a
// project directory.
//
// Execute returns one ordered channel per invocation: zero or more Line
// messages followed by exactly one terminal message, after which the channel
// is closed. A failing action is a normal outcome (Success=false with the cause
// logged as a line); only an unknown action name is returned as an error.
package action
