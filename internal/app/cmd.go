package app

import "strings"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はインタラクションAPIサーバーと定期取り込みを起動することを示す。
	CommandServe Command = "serve"
	// CommandIngest はカタログ取り込みを1回だけ実行することを示す。
	CommandIngest Command = "ingest"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "ingest":
		return CommandIngest
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// IngestTarget はingestサブコマンドの取得元引数を解析する。
// http(s)で始まる場合はURL、それ以外はファイルパスとして返す。
// 引数がない場合は両方空で、設定済みの取得元を使う。
func IngestTarget(args []string) (sourceURL, filePath string) {
	if len(args) < 2 || args[0] != string(CommandIngest) {
		return "", ""
	}
	target := strings.TrimSpace(args[1])
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return target, ""
	}
	return "", target
}
