package ml

import "fmt"

// FailureMessage 所有失败统一展示的文本
const FailureMessage = "Error occurred during prediction"

// Kind 预测结果类型
type Kind int

const (
	KindEmpty Kind = iota
	KindLabel
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindFailure:
		return "failure"
	default:
		return "empty"
	}
}

// Cause 失败原因，仅用于内部诊断
type Cause string

const (
	CauseNone     Cause = ""
	CauseNetwork  Cause = "network"
	CauseServer   Cause = "server"
	CauseSchema   Cause = "schema"
	CauseEncoding Cause = "encoding"
)

// Outcome 一次预测的结果：Empty、Label或Failure
type Outcome struct {
	Kind  Kind
	Label string
	Cause Cause
	Err   error
}

// Empty 初始结果
func Empty() Outcome {
	return Outcome{Kind: KindEmpty}
}

// Label 成功结果
func Label(text string) Outcome {
	return Outcome{Kind: KindLabel, Label: text}
}

// Failure 失败结果，附带内部原因
func Failure(cause Cause, err error) Outcome {
	return Outcome{Kind: KindFailure, Cause: cause, Err: err}
}

// Display 返回页面上显示的一行文本，Empty时为空
func (o Outcome) Display() string {
	switch o.Kind {
	case KindLabel:
		return fmt.Sprintf("Predicted Material: %s", o.Label)
	case KindFailure:
		return FailureMessage
	default:
		return ""
	}
}

// View 结果的JSON视图，不包含内部原因
type View struct {
	Status string `json:"status"`
	Label  string `json:"label,omitempty"`
	Text   string `json:"text"`
}

// View 转换为对外视图
func (o Outcome) View() View {
	return View{
		Status: o.Kind.String(),
		Label:  o.Label,
		Text:   o.Display(),
	}
}
