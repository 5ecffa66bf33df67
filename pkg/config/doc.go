// Package config loads typed configuration structs from environment
// variables (and an optional .env file in development).
//
// Structs declare their variables with `env` / `envDefault` tags, parsed by
// github.com/caarlos0/env. Each configuration type is loaded once per
// process and cached, so the queue, store, and logger packages can each load
// their own config without coordinating.
//
// # Usage
//
//	var cfg queue.Config
//	config.MustLoad(&cfg)
//
//	dispatcher, err := queue.NewDispatcher(storage, queue.WithDispatcherConfig(cfg))
package config
