package config

import "errors"

var (
	// ErrRead возвращается, когда файл конфигурации не читается
	ErrRead = errors.New("config: failed to read file")

	// ErrParse возвращается при синтаксической ошибке toml
	ErrParse = errors.New("config: failed to parse toml")

	// ErrEnv возвращается при некорректных переменных окружения
	ErrEnv = errors.New("config: failed to process environment")

	// ErrInvalid возвращается при несогласованной конфигурации
	ErrInvalid = errors.New("config: invalid configuration")
)
