package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// AllowedImageContentTypes maps accepted upload content types to the extension they are stored under.
var AllowedImageContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// MaxUploadSize is the maximum allowed file size for uploads (5MB).
const MaxUploadSize = 5 << 20

// ValidateFileUpload checks that the uploaded file has a valid image content type
// and does not exceed the maximum file size.
func ValidateFileUpload(fh *multipart.FileHeader) error {
	if fh.Size > MaxUploadSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of 5MB", fh.Size)
	}

	contentType := fh.Header.Get("Content-Type")
	if _, ok := AllowedImageContentTypes[contentType]; !ok {
		return fmt.Errorf("invalid file type '%s'; allowed types: image/jpeg, image/png, image/webp, image/gif", contentType)
	}

	return nil
}

// ImageExtension returns the stored extension for an upload that passed ValidateFileUpload.
func ImageExtension(fh *multipart.FileHeader) string {
	if ext, ok := AllowedImageContentTypes[fh.Header.Get("Content-Type")]; ok {
		return ext
	}
	return ".jpg"
}

// Scalar is a request field that accepts either a JSON string or a JSON number,
// so clients may send "price": 19.99 or "price": "19.99". Validation tags run
// against the textual form.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(strings.TrimSpace(str))
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return &json.UnmarshalTypeError{Value: "object", Type: reflect.TypeOf(Scalar(""))}
	default:
		*s = Scalar(data)
	}
	return nil
}

func (s Scalar) String() string { return string(s) }

func (s Scalar) Int() int {
	n, _ := strconv.Atoi(string(s))
	return n
}

func (s Scalar) Uint() uint {
	n, _ := strconv.ParseUint(string(s), 10, 64)
	return uint(n)
}

func (s Scalar) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NullDecimal is empty for an omitted value.
func (s Scalar) NullDecimal() decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.Decimal())
}

var registerOnce sync.Once

// RegisterValidators configures gin's validator to report JSON field names and
// adds the "money" rule (a non-negative decimal amount).
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("money", isMoney)
	})
}

func jsonFieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func isMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative()
}

// ValidationErrors turns a binding error into field-keyed messages suitable for
// a {status:400, errors:{...}} envelope.
func ValidationErrors(err error) map[string][]string {
	out := map[string][]string{}
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			key := fieldKey(fieldPath(fe))
			out[key] = append(out[key], fieldMessage(fe, key))
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		key := fieldKey(typeErr.Field)
		out[key] = append(out[key], fmt.Sprintf("The %s field has an invalid type.", label(key)))
		return out
	}

	out["body"] = []string{"The request body is invalid."}
	return out
}

// AddFieldError appends a message in the same shape ValidationErrors produces.
func AddFieldError(errs map[string][]string, field, message string) map[string][]string {
	if errs == nil {
		errs = map[string][]string{}
	}
	errs[field] = append(errs[field], message)
	return errs
}

// fieldPath drops the root struct from the namespace, so nested fields come
// out as "items[0].qty".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldKey(field string) string {
	field = strings.ReplaceAll(field, "[", ".")
	return strings.ReplaceAll(field, "]", "")
}

func label(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func fieldMessage(fe validator.FieldError, key string) string {
	name := label(key)
	stringish := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "numeric":
		return fmt.Sprintf("The %s field must be a number.", name)
	case "number":
		return fmt.Sprintf("The %s field must be an integer.", name)
	case "money":
		return fmt.Sprintf("The %s field must be a non-negative amount.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", strings.ToLower(label(fieldKey(fe.Param()))))
	case "min", "gte":
		if stringish {
			return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
	case "max", "lte":
		if stringish {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", name, fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}
