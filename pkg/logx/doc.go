// Package logx is flobot's logging layer over zerolog.
//
// A Service owns the outputs selected by the logging config section: a
// console writer, a JSON file and a chat sink that posts errors to the
// bot's error channel. Components hold a Logger and derive it with With.
package logx
