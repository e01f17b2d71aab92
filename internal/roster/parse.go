package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/width"
)

var (
	ErrNoSeparator = errors.New("no name/rating separator")
	ErrEmptyName   = errors.New("empty name")
	ErrBadRating   = errors.New("rating is not a number")
	ErrNameTooLong = errors.New("name is too long")
	ErrRosterFull  = errors.New("roster is full")
	ErrInvalid     = errors.New("invalid entry")
)

// MaxNameLength is the longest accepted name, in characters.
const MaxNameLength = 64

var (
	// Entry separators accepted in bulk input, in both widths.
	entrySeparators = strings.NewReplacer("\r\n", ",", "\n", ",", "、", ",", "；", ",", ";", ",", "，", ",")
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	validate        = validator.New()
)

// Entry is one name/rating pair read from bulk input.
type Entry struct {
	Name   string `yaml:"name" validate:"required,max=64"`
	Rating int    `yaml:"rating" validate:"min=0"`
}

// EntryError describes a bulk input fragment that could not be used.
type EntryError struct {
	Raw string
	Err error
}

func (e EntryError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.Raw) }

func (e EntryError) Unwrap() error { return e.Err }

// Parse reads "name:rating" pairs separated by commas, semicolons, the
// ideographic comma or newlines. Both ':' and the full-width '：' split name
// from rating, and full-width digits are accepted in the rating.
func Parse(text string) ([]Entry, []EntryError) {
	var (
		entries []Entry
		bad     []EntryError
	)
	for _, raw := range strings.Split(entrySeparators.Replace(text), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		e, err := parseEntry(raw)
		if err != nil {
			bad = append(bad, EntryError{Raw: raw, Err: err})
			continue
		}
		entries = append(entries, e)
	}
	return entries, bad
}

func parseEntry(raw string) (Entry, error) {
	name, rating, ok := strings.Cut(raw, "：")
	if !ok {
		name, rating, ok = strings.Cut(raw, ":")
	}
	if !ok {
		return Entry{}, ErrNoSeparator
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, ErrEmptyName
	}
	rating = width.Narrow.String(strings.TrimSpace(rating))
	if !digitsOnly.MatchString(rating) {
		return Entry{}, ErrBadRating
	}
	r, err := strconv.Atoi(rating)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrBadRating, err)
	}
	e := Entry{Name: name, Rating: r}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Validate checks the name length and that the rating is not negative.
// Failures map to ErrEmptyName, ErrNameTooLong or ErrBadRating.
func (e Entry) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch {
		case fe.Field() == "Name" && fe.Tag() == "max":
			return fmt.Errorf("%w: %d characters max", ErrNameTooLong, MaxNameLength)
		case fe.Field() == "Name":
			return ErrEmptyName
		case fe.Field() == "Rating":
			return ErrBadRating
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}
