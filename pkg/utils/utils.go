package utils

import (
	"math/rand"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// RoomIDAlphabet has no 0/O or 1/I so codes can be read out loud.
const RoomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomIDLength is the length of every generated room code.
const RoomIDLength = 8

const (
	letterIdxBits = 5                    // 5 bits to represent an alphabet index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

var (
	srcMu       sync.Mutex
	src         = rand.NewSource(time.Now().UnixNano())
	roomIDRegex = regexp.MustCompile("^[" + RoomIDAlphabet + "]{" + strconv.Itoa(RoomIDLength) + "}$")
	nameRegex   = regexp.MustCompile(`^[\p{L}\p{N}]+[\p{L}\p{N} :_.'-]*[\p{L}\p{N}]+$`)

	mediaExtensions = []string{".mp4", ".webm", ".mkv", ".mov", ".m4v", ".ogg", ".ogv", ".m3u8", ".mpd"}
)

// RandString returns a random string of the specified length drawn from alphabet,
// which must hold at most 32 characters.
func RandString(length int, alphabet string) string {
	b := make([]byte, length)
	srcMu.Lock()
	defer srcMu.Unlock()
	for i, cache, remain := length-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(alphabet) {
			b[i] = alphabet[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return string(b)
}

// RandRoomID returns a fresh room code
func RandRoomID() string {
	return RandString(RoomIDLength, RoomIDAlphabet)
}

func InArray(arr []string, val string) bool {
	for _, s := range arr {
		if s == val {
			return true
		}
	}
	return false
}

func IsLengthValid(str string, minLen, maxLen int) bool {
	length := utf8.RuneCountInString(str)
	return length >= minLen && length <= maxLen
}

// IsNameValid checks a display name: 2-20 characters, no leading or trailing punctuation.
func IsNameValid(name string) bool {
	return IsLengthValid(name, 2, 20) && nameRegex.MatchString(name)
}

func IsRoomNameValid(name string) bool {
	return IsLengthValid(strings.TrimSpace(name), 1, 50)
}

func IsRoomIDValid(id string) bool {
	return roomIDRegex.MatchString(id)
}

// IsUrlValid accepts absolute http and https URLs with a host.
func IsUrlValid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsDirectMediaUrl reports whether the URL path points straight at a media file or manifest.
func IsDirectMediaUrl(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return InArray(mediaExtensions, strings.ToLower(path.Ext(u.Path)))
}
