package dynamo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/traffictacos/ticketing-core/internal/store"
)

// compilePredicate translates the store package's adapter-agnostic
// Predicate vocabulary into a DynamoDB ConditionExpression plus its
// attribute value/name maps. An empty expression means "no condition".
// keyItem supplies the field names NotExists binds to, since DynamoDB
// proves item absence via attribute_not_exists rather than a generic
// row check. Callers pass either the key or the whole item being
// written; either way the key attributes are among those fields, so
// the ANDed attribute_not_exists clauses hold only when no row exists.
func compilePredicate(pred store.Predicate, keyItem store.Item) (string, map[string]types.AttributeValue, map[string]string, error) {
	if pred == nil {
		return "", nil, nil, nil
	}
	values := map[string]types.AttributeValue{}
	names := map[string]string{}
	expr, err := compilePredicateInto(pred, keyItem, values, names)
	if err != nil {
		return "", nil, nil, err
	}
	if len(values) == 0 {
		values = nil
	}
	if len(names) == 0 {
		names = nil
	}
	return expr, values, names, nil
}

func compilePredicateInto(pred store.Predicate, keyItem store.Item, values map[string]types.AttributeValue, names map[string]string) (string, error) {
	switch p := pred.(type) {
	case store.NotExists:
		if len(keyItem) == 0 {
			return "", fmt.Errorf("dynamo: NotExists requires a key field to bind to")
		}
		clauses := make([]string, 0, len(keyItem))
		for field := range keyItem {
			nk := fmt.Sprintf("#k%d", len(names))
			names[nk] = field
			clauses = append(clauses, fmt.Sprintf("attribute_not_exists(%s)", nk))
		}
		return joinAnd(clauses), nil
	case store.FieldEquals:
		nk := fmt.Sprintf("#f%d", len(names))
		vk := fmt.Sprintf(":v%d", len(values))
		names[nk] = p.Field
		av, err := attributevalue.Marshal(p.Value)
		if err != nil {
			return "", fmt.Errorf("dynamo: marshal condition value: %w", err)
		}
		values[vk] = av
		return fmt.Sprintf("%s = %s", nk, vk), nil
	case store.FieldAbsent:
		nk := fmt.Sprintf("#f%d", len(names))
		names[nk] = p.Field
		return fmt.Sprintf("attribute_not_exists(%s)", nk), nil
	case store.And:
		if len(p) == 0 {
			return "", nil
		}
		clauses := make([]string, 0, len(p))
		for _, sub := range p {
			clause, err := compilePredicateInto(sub, keyItem, values, names)
			if err != nil {
				return "", err
			}
			if clause == "" {
				continue
			}
			clauses = append(clauses, clause)
		}
		return joinAnd(clauses), nil
	default:
		return "", fmt.Errorf("dynamo: unsupported predicate %T", pred)
	}
}

func joinAnd(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}

// compileKeyCondition translates a KeyCondition into a Query
// KeyConditionExpression (begins_with for prefix scans).
func compileKeyCondition(pred store.Predicate) (string, map[string]types.AttributeValue, map[string]string, error) {
	kc, ok := pred.(store.KeyCondition)
	if !ok {
		return "", nil, nil, fmt.Errorf("dynamo: query requires a KeyCondition, got %T", pred)
	}
	av, err := attributevalue.Marshal(kc.Prefix)
	if err != nil {
		return "", nil, nil, fmt.Errorf("dynamo: marshal key prefix: %w", err)
	}
	names := map[string]string{"#k": kc.Field}
	values := map[string]types.AttributeValue{":p": av}
	return "begins_with(#k, :p)", values, names, nil
}

// compileMutation translates a Mutation into an UpdateExpression.
func compileMutation(mut store.Mutation) (string, map[string]types.AttributeValue, map[string]string, error) {
	values := map[string]types.AttributeValue{}
	names := map[string]string{}
	setClauses := []string{}
	addClauses := []string{}

	addSet := func(field string, v any) error {
		nk := fmt.Sprintf("#s%d", len(names))
		vk := fmt.Sprintf(":s%d", len(values))
		names[nk] = field
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("dynamo: marshal set value: %w", err)
		}
		values[vk] = av
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nk, vk))
		return nil
	}
	addIncr := func(field string, delta int) error {
		nk := fmt.Sprintf("#i%d", len(names))
		vk := fmt.Sprintf(":i%d", len(values))
		names[nk] = field
		av, err := attributevalue.Marshal(delta)
		if err != nil {
			return fmt.Errorf("dynamo: marshal incr value: %w", err)
		}
		values[vk] = av
		setClauses = append(setClauses, fmt.Sprintf("%s = if_not_exists(%s, :zero) + %s", nk, nk, vk))
		values[":zero"] = mustZero()
		return nil
	}

	switch m := mut.(type) {
	case store.Composite:
		for f, v := range m.Set {
			if err := addSet(f, v); err != nil {
				return "", nil, nil, err
			}
		}
		for f, d := range m.Incr {
			if err := addIncr(f, d); err != nil {
				return "", nil, nil, err
			}
		}
	case store.Set:
		for f, v := range m {
			if err := addSet(f, v); err != nil {
				return "", nil, nil, err
			}
		}
	case store.Incr:
		for f, d := range m {
			if err := addIncr(f, d); err != nil {
				return "", nil, nil, err
			}
		}
	default:
		return "", nil, nil, fmt.Errorf("dynamo: unsupported mutation %T", mut)
	}

	expr := ""
	if len(setClauses) > 0 {
		expr = "SET " + joinComma(setClauses)
	}
	if len(addClauses) > 0 {
		if expr != "" {
			expr += " "
		}
		expr += "ADD " + joinComma(addClauses)
	}
	return expr, values, names, nil
}

func mustZero() types.AttributeValue {
	av, _ := attributevalue.Marshal(0)
	return av
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func mergeAV(a, b map[string]types.AttributeValue) map[string]types.AttributeValue {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make(map[string]types.AttributeValue, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeStr(a, b map[string]string) map[string]string {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func isConditionalCheckFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func as(err error, target any) bool {
	switch t := target.(type) {
	case **types.TransactionCanceledException:
		return errors.As(err, t)
	default:
		return false
	}
}
