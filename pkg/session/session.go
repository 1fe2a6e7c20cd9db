package session

import (
	"errors"
	"image"
	"sort"
)

// Label 是一个条目的标注：未标注、评分 1..9 或删除标记
type Label byte

const (
	Unset  Label = 0
	Delete Label = 'd'
)

// ParseLabel 接受 "1".."9" 与 "d"/"D"
func ParseLabel(s string) (Label, bool) {
	if len(s) != 1 {
		return Unset, false
	}
	c := s[0]
	switch {
	case c >= '1' && c <= '9':
		return Label(c), true
	case c == 'd' || c == 'D':
		return Delete, true
	}
	return Unset, false
}

// String 返回报告中使用的形式，未标注为 "?"，删除标记为 "D"
func (l Label) String() string {
	switch l {
	case Unset:
		return "?"
	case Delete:
		return "D"
	default:
		return string(rune(l))
	}
}

func (l Label) IsSet() bool { return l != Unset }

type Item struct {
	Path  string
	Box   image.Point
	Label Label
}

type State int

const (
	Active State = iota
	Finished
)

func (s State) String() string {
	if s == Finished {
		return "finished"
	}
	return "active"
}

var (
	ErrEmptyInput = errors.New("没有可标注的图片")
	ErrFinished   = errors.New("标注会话已结束")
)

// Row 是报告中的一行
type Row struct {
	Path string
	Rank string
}

type Report struct {
	All   []Row
	Clean []Row
}

// Session 是一个环形的条目序列加一个游标。
// 游标总是指向某个条目，前后移动按条目数取模。
type Session struct {
	items  []Item
	cursor int
	state  State
}

func New(paths []string, box image.Point) (*Session, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyInput
	}
	items := make([]Item, len(paths))
	for i, p := range paths {
		items[i] = Item{Path: p, Box: box}
	}
	return &Session{items: items}, nil
}

func (s *Session) Advance() error {
	if s.state == Finished {
		return ErrFinished
	}
	s.cursor = (s.cursor + 1) % len(s.items)
	return nil
}

func (s *Session) Retreat() error {
	if s.state == Finished {
		return ErrFinished
	}
	s.cursor = (s.cursor - 1 + len(s.items)) % len(s.items)
	return nil
}

// Label 给当前条目打标后前进一位。无法识别的 tag 直接忽略，返回 false。
func (s *Session) Label(tag string) (bool, error) {
	if s.state == Finished {
		return false, ErrFinished
	}
	l, ok := ParseLabel(tag)
	if !ok {
		return false, nil
	}
	s.items[s.cursor].Label = l
	return true, s.Advance()
}

// Finish 结束会话并生成报告，两个视图都按路径排序。
// clean 视图不含标记为删除的条目。
func (s *Session) Finish() (Report, error) {
	if s.state == Finished {
		return Report{}, ErrFinished
	}
	s.state = Finished

	sorted := append([]Item(nil), s.items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var rep Report
	rep.All = make([]Row, 0, len(sorted))
	rep.Clean = make([]Row, 0, len(sorted))
	for _, it := range sorted {
		row := Row{Path: it.Path, Rank: it.Label.String()}
		rep.All = append(rep.All, row)
		if it.Label != Delete {
			rep.Clean = append(rep.Clean, row)
		}
	}
	return rep, nil
}

// Restore 把上次保存的标注应用到同路径的条目上，返回应用的数量
func (s *Session) Restore(labels map[string]Label) (int, error) {
	if s.state == Finished {
		return 0, ErrFinished
	}
	n := 0
	for i := range s.items {
		if l, ok := labels[s.items[i].Path]; ok && l.IsSet() {
			s.items[i].Label = l
			n++
		}
	}
	return n, nil
}

// Seek 把游标移到第一个未标注的条目，全部已标注时不动
func (s *Session) Seek() {
	for i, it := range s.items {
		if !it.Label.IsSet() {
			s.cursor = i
			return
		}
	}
}

func (s *Session) Classified() int {
	n := 0
	for _, it := range s.items {
		if it.Label.IsSet() {
			n++
		}
	}
	return n
}

func (s *Session) Total() int { return len(s.items) }

func (s *Session) Cursor() int { return s.cursor }

func (s *Session) State() State { return s.state }

func (s *Session) Current() Item { return s.items[s.cursor] }

// Items 返回条目的副本
func (s *Session) Items() []Item { return append([]Item(nil), s.items...) }

// At 返回相对序号 i 的条目，i 可以为负或越界，按条目数取模
func (s *Session) At(i int) Item {
	n := len(s.items)
	return s.items[((i%n)+n)%n]
}
