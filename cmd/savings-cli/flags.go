package main

const (
	flagEmail    = "email"
	flagFullName = "full-name"
	flagID       = "id"
	flagInterval = "interval"
	flagLevel    = "level"
	flagLimit    = "limit"
	flagLogin    = "login"
	flagMarkAll  = "mark-all"
	flagMarkRead = "mark-read"
	flagPassword = "password"
	flagRemember = "remember"
	flagUsername = "username"
)
