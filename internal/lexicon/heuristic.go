package lexicon

// HeuristicVariants 基于固定字符串变换生成拼写变体
// 使用确定性的小规模变换集合(末字母重复/删除、插入连字符、末两字母换位、
// 删除或追加元音),规范化去重后截断到 k 个。该路径永不失败,
// 作为生成式建议器不可用时的兜底。
func HeuristicVariants(word string, k int) []string {
	if word == "" || k <= 0 {
		return nil
	}
	r := []rune(word)
	n := len(r)

	cands := make([]string, 0, 6)
	cands = append(cands, word+string(r[n-1]))
	if n > 2 {
		cands = append(cands, string(r[:n-1]))
	} else {
		cands = append(cands, word)
	}
	if n > 3 {
		cands = append(cands, string(r[:1])+"-"+string(r[1:]))
	} else {
		cands = append(cands, word+"-")
	}
	if n > 3 {
		cands = append(cands, string(r[:n-2])+string(r[n-1])+string(r[n-2]))
	} else {
		cands = append(cands, reverse(r))
	}
	if idx := indexRune(r, 'e'); idx >= 0 {
		cands = append(cands, string(r[:idx])+string(r[idx+1:]))
	} else {
		cands = append(cands, word+"e")
	}
	if idx := indexRune(r, 'i'); idx >= 0 {
		cands = append(cands, string(r[:idx])+"ie"+string(r[idx+1:]))
	} else {
		cands = append(cands, word)
	}

	out := make([]string, 0, k)
	seen := map[string]bool{word: true}
	for _, c := range cands {
		norm := Normalize(c)
		if norm != "" && !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
		if len(out) >= k {
			break
		}
	}
	return out
}

func reverse(r []rune) string {
	out := make([]rune, len(r))
	for i, c := range r {
		out[len(r)-1-i] = c
	}
	return string(out)
}

func indexRune(r []rune, target rune) int {
	for i, c := range r {
		if c == target {
			return i
		}
	}
	return -1
}
