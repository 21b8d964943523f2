package srt

import (
	"fmt"
	"net/url"
	"strings"
)

// accessControlPrefix SRT 접근 제어 스트림 ID 문법 (#!::key=value,...)
const accessControlPrefix = "#!::"

// MaxStreamKeyLength 스트림 키 최대 길이
const MaxStreamKeyLength = 255

// StreamIDInfo 파싱된 StreamID 정보
type StreamIDInfo struct {
	Mode     string            // "publish" 또는 "play" (없으면 빈 문자열)
	Resource string            // 스트림 리소스 이름
	User     string            // 접근 제어 문법의 u 키
	Params   map[string]string // 추가 파라미터들
}

// ParseStreamID StreamID 문자열 파싱
//
// 지원 형식:
//   - #!::r=live/cam1,m=publish,u=alice
//   - srt://host/mode/resource?key=value
//   - mode:resource, mode/resource, mode,key=value
//   - 그 외 단일 토큰은 리소스 이름
func ParseStreamID(streamID string) (*StreamIDInfo, error) {
	if streamID == "" {
		return nil, fmt.Errorf("empty streamID")
	}

	info := &StreamIDInfo{
		Params: make(map[string]string),
	}

	switch {
	case strings.HasPrefix(streamID, accessControlPrefix):
		return parseAccessControlStreamID(strings.TrimPrefix(streamID, accessControlPrefix), info)
	case strings.HasPrefix(streamID, "srt://"):
		return parseURLStreamID(streamID, info)
	default:
		return parseSimpleStreamID(streamID, info)
	}
}

// parseAccessControlStreamID 쉼표로 구분된 key=value 목록 파싱
func parseAccessControlStreamID(body string, info *StreamIDInfo) (*StreamIDInfo, error) {
	if body == "" {
		return nil, fmt.Errorf("empty access control streamID")
	}

	for _, item := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid access control item: %q", item)
		}

		switch key {
		case "r":
			info.Resource = value
		case "m":
			info.Mode = value
		case "u":
			info.User = value
		default:
			info.Params[key] = value
		}
	}

	return info, nil
}

// parseURLStreamID URL 형태 StreamID 파싱
func parseURLStreamID(streamID string, info *StreamIDInfo) (*StreamIDInfo, error) {
	u, err := url.Parse(streamID)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("missing mode in URL path")
	}

	mode, resource, _ := strings.Cut(path, "/")
	info.Mode = mode
	info.Resource = resource

	for key, values := range u.Query() {
		if len(values) > 0 {
			info.Params[key] = values[0]
		}
	}

	return info, nil
}

// parseSimpleStreamID 간단한 형태 StreamID 파싱
func parseSimpleStreamID(streamID string, info *StreamIDInfo) (*StreamIDInfo, error) {
	head, params, hasParams := strings.Cut(streamID, ",")
	if hasParams {
		for _, item := range strings.Split(params, ",") {
			if key, value, ok := strings.Cut(item, "="); ok {
				info.Params[key] = value
			}
		}
	}

	for _, sep := range []string{":", "/"} {
		if mode, resource, ok := strings.Cut(head, sep); ok && isKnownMode(mode) {
			info.Mode = mode
			info.Resource = resource
			return info, nil
		}
	}

	if isKnownMode(head) {
		info.Mode = head
	} else {
		info.Resource = head
	}
	return info, nil
}

func isKnownMode(mode string) bool {
	info := StreamIDInfo{Mode: mode}
	return info.IsPublishMode() || info.IsPlayMode()
}

// IsPublishMode 발행 모드인지 확인
func (info *StreamIDInfo) IsPublishMode() bool {
	mode := strings.ToLower(info.Mode)
	return mode == "publish" || mode == "pub" || mode == "push" || mode == "send"
}

// IsPlayMode 재생 모드인지 확인
func (info *StreamIDInfo) IsPlayMode() bool {
	mode := strings.ToLower(info.Mode)
	return mode == "play" || mode == "sub" || mode == "pull" || mode == "receive" || mode == "request"
}

// GetStreamKey 스트림 키 반환 (리소스 이름 기반)
func (info *StreamIDInfo) GetStreamKey() string {
	if info.Resource != "" {
		return info.Resource
	}

	for _, key := range []string{"streamid", "stream", "key"} {
		if streamKey, exists := info.Params[key]; exists {
			return streamKey
		}
	}

	return fmt.Sprintf("stream_%s", info.Mode)
}

// GetParameter 파라미터 값 반환
func (info *StreamIDInfo) GetParameter(key string) (string, bool) {
	value, exists := info.Params[key]
	return value, exists
}

// ValidateStreamID 수집 대상 StreamID 검증. 재생 모드는 거부한다.
func ValidateStreamID(info *StreamIDInfo) error {
	if info == nil {
		return fmt.Errorf("missing streamID")
	}

	if info.IsPlayMode() {
		return fmt.Errorf("mode %q is not supported for ingest", info.Mode)
	}
	if info.Mode != "" && !info.IsPublishMode() {
		return fmt.Errorf("invalid mode: %s (must be publish)", info.Mode)
	}

	streamKey := info.GetStreamKey()
	if len(streamKey) > MaxStreamKeyLength {
		return fmt.Errorf("stream key too long: %d (max %d)", len(streamKey), MaxStreamKeyLength)
	}

	if i := strings.IndexAny(streamKey, "<>\"'&\n\r\t"); i >= 0 {
		return fmt.Errorf("stream key contains forbidden character: %q", streamKey[i])
	}

	return nil
}
