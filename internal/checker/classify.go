package checker

import (
	"github.com/nao1215/capilint/internal/lexer"
	"github.com/nao1215/capilint/internal/model"
)

// assignOps is the "="-family. "==", "!=", "<=" and ">=" are separate
// tokens and can never appear here.
var assignOps = map[string]bool{
	"=":   true,
	"+=":  true,
	"-=":  true,
	"*=":  true,
	"/=":  true,
	"%=":  true,
	"|=":  true,
	"&=":  true,
	"^=":  true,
	"<<=": true,
	">>=": true,
}

// IsAssignOp reports whether tok is an assignment operator.
func IsAssignOp(tok lexer.Token) bool {
	return tok.Kind == lexer.Punct && assignOps[tok.Text]
}

// postfixStartsNewOperand reports whether tok applies a postfix operator to
// the call's result, which makes the call itself an r-value.
func postfixStartsNewOperand(tok lexer.Token) bool {
	return tok.Is("->") || tok.Is(".") || tok.Is("[") || tok.Is("(")
}

// classify decides how a call site uses its symbol. The second result is
// false for benign r-value uses.
func classify(site CallSite) (model.Context, bool) {
	// &PyTuple_GET_ITEM(t, 0)->ob_type and Py_TYPE(o)->tp_name = x both
	// operate on what the call returns.
	if postfixStartsNewOperand(site.After) {
		return 0, false
	}

	if site.AddressOf {
		if site.Rule.AllowedAddressOf {
			return 0, false
		}
		return model.AddressOf, true
	}

	if IsAssignOp(site.After) {
		// *PyBytes_AS_STRING(o) = c writes through the returned pointer.
		if site.Deref {
			return 0, false
		}
		return model.Assignment, true
	}

	if site.After.Is("++") || site.After.Is("--") || site.PreIncDec {
		return model.Increment, true
	}
	return 0, false
}
