package daly

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated          = errors.New("truncated frame")
	ErrInvalidMarker      = errors.New("invalid start marker")
	ErrOversized          = errors.New("frame exceeds maximum notification size")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnknownKind        = errors.New("unknown frame kind")
	ErrPayloadLength      = errors.New("payload length mismatch")
	ErrUnsupportedCommand = errors.New("command not supported by revision profile")
	ErrInvalidValue       = errors.New("invalid command value")
)

// UnknownKindError 携带无法识别的类型字节，errors.Is(err, ErrUnknownKind) 成立
type UnknownKindError struct {
	Kind byte
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown frame kind 0x%02X", e.Kind)
}

func (e *UnknownKindError) Is(target error) bool { return target == ErrUnknownKind }

// PayloadLengthError 解码器期望长度与实际负载长度不一致
type PayloadLengthError struct {
	Kind     Kind
	Expected int
	Got      int
}

func (e *PayloadLengthError) Error() string {
	return fmt.Sprintf("%s payload length mismatch: expected %d, got %d", e.Kind, e.Expected, e.Got)
}

func (e *PayloadLengthError) Is(target error) bool { return target == ErrPayloadLength }

// IsFrameError 判断是否为可丢弃的帧级错误（不应中断调用方流程）
func IsFrameError(err error) bool {
	return errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrInvalidMarker) ||
		errors.Is(err, ErrOversized) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrPayloadLength)
}

// ErrorLabel 返回用于指标标签的短名称
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrInvalidMarker):
		return "invalid_marker"
	case errors.Is(err, ErrOversized):
		return "oversized"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, ErrPayloadLength):
		return "payload_length"
	case errors.Is(err, ErrUnsupportedCommand):
		return "unsupported"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	default:
		return "error"
	}
}
