// Package title はスレッド表示名に語数を埋め込むコーデックを提供する。
// 文法は "<題名> [<N> words]"。語数0の場合マーカーは付与されない。
package title

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hitoshi/storybot/internal/model"
)

// nameRe はスレッド名の文法。題名部は最短一致で、
// 末尾の語数マーカーと後続空白は省略可能。
var nameRe = regexp.MustCompile(`^(.*?)(\[([0-9]+) words\])?\s*$`)

// Parse はスレッド名から題名と語数を抽出する。
// マーカーがない場合の語数は0。題名は前後の空白を除去して返す。
// マーカーの数字部が整数としてパースできない場合は不変条件の破損であり、
// データエラーを返す（握りつぶさない）。
func Parse(name string) (string, int, error) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, model.NewTitleParseFailedError(name, nil)
	}

	t := strings.TrimSpace(m[1])

	wordcount := 0
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return "", 0, model.NewTitleParseFailedError(name, err)
		}
		wordcount = n
	}
	return t, wordcount, nil
}

// Format は題名と語数からスレッド名を構築する。
// 語数0の場合は題名のみを返し、Parse(Format(t, n)) == (t, n) が成り立つ。
func Format(t string, wordcount int) string {
	if wordcount <= 0 {
		return t
	}
	return fmt.Sprintf("%s [%d words]", t, wordcount)
}
