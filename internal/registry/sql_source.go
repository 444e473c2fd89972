package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/internal/usecase"
)

const (
	upSuffix      = ".up.sql"
	downSuffix    = ".down.sql"
	dependsPrefix = "-- depends:"
)

// LoadSQLDir はディレクトリから {name}.up.sql / {name}.down.sql の組を読み込む。
// 識別子は {name}。up ファイル先頭の "-- depends: A, B" 行で依存先を宣言できる。
func LoadSQLDir(dir string) ([]usecase.Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		name, direction, err := parseMigrationFileName(entry.Name())
		if err != nil {
			return nil, err
		}

		path := filepath.Join(dir, entry.Name())
		if direction == "up" {
			ups[name] = path
		} else {
			downs[name] = path
		}
	}

	for name := range downs {
		if _, ok := ups[name]; !ok {
			return nil, fmt.Errorf("%w: %s%s has no matching %s file", domain.ErrInvalidMigrationFile, name, downSuffix, upSuffix)
		}
	}

	// ファイル名順にソート
	names := make([]string, 0, len(ups))
	for name := range ups {
		names = append(names, name)
	}
	sort.Strings(names)

	migrations := make([]usecase.Migration, 0, len(names))
	for _, name := range names {
		mig, err := loadSQLMigration(name, ups[name], downs[name])
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, mig)
	}
	return migrations, nil
}

// parseMigrationFileName はファイル名から識別子と方向を抽出する。
// ファイル名のフォーマット: {name}.up.sql / {name}.down.sql (例: 001_create_users.up.sql)
func parseMigrationFileName(filename string) (name, direction string, err error) {
	switch {
	case strings.HasSuffix(filename, upSuffix):
		name, direction = strings.TrimSuffix(filename, upSuffix), "up"
	case strings.HasSuffix(filename, downSuffix):
		name, direction = strings.TrimSuffix(filename, downSuffix), "down"
	default:
		return "", "", fmt.Errorf("%w: %s (expected format: {name}.up.sql or {name}.down.sql)", domain.ErrInvalidMigrationFile, filename)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: %s (empty migration name)", domain.ErrInvalidMigrationFile, filename)
	}
	return name, direction, nil
}

func loadSQLMigration(name, upPath, downPath string) (*usecase.SQLMigration, error) {
	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file: %w", err)
	}

	mig := &usecase.SQLMigration{
		ID:           domain.NewMigrationID(name),
		Dependencies: parseDependencies(string(upSQL)),
		UpSQL:        splitStatements(string(upSQL)),
	}

	if downPath != "" {
		downSQL, err := os.ReadFile(downPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file: %w", err)
		}
		mig.DownSQL = splitStatements(string(downSQL))
	}
	return mig, nil
}

// splitStatements はSQLファイルの内容を ';' 区切りの文に分割する。
// 引用符とコメント内の ';' では区切らず、コメントだけの文は捨てる。
func splitStatements(sql string) []string {
	var (
		statements []string
		current    strings.Builder
		hasCode    bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); hasCode && stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
		hasCode = false
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := closingQuote(sql, i)
			current.WriteString(sql[i:end])
			i = end - 1
			hasCode = true
		case ch == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			current.WriteString(sql[i : i+end])
			i += end - 1
		case ch == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql) - i
			} else {
				end += 4
			}
			current.WriteString(sql[i : i+end])
			i += end - 1
		case ch == ';':
			flush()
		default:
			current.WriteByte(ch)
			if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
				hasCode = true
			}
		}
	}
	flush()
	return statements
}

// closingQuote は start の引用符に対応する閉じ引用符の直後の位置を返す。
// 引用符の二重化 ('') とバックスラッシュによるエスケープを読み飛ばす。
func closingQuote(sql string, start int) int {
	quote := sql[start]
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if quote != '`' {
				i++
			}
		case quote:
			if i+1 < len(sql) && sql[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(sql)
}

// parseDependencies は先頭のコメント行から依存先を読み取る。
// 最初のコメント以外の行で打ち切る。
func parseDependencies(sql string) []domain.MigrationID {
	var deps []domain.MigrationID
	scanner := bufio.NewScanner(strings.NewReader(sql))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if !strings.HasPrefix(strings.ToLower(line), dependsPrefix) {
			continue
		}
		for _, dep := range strings.Split(line[len(dependsPrefix):], ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				deps = append(deps, domain.NewMigrationID(dep))
			}
		}
	}
	return deps
}
