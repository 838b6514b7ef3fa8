// Package i18n validates request payloads and renders API messages in the
// caller's language.
package i18n

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	pt_BR_translations "github.com/go-playground/validator/v10/translations/pt_BR"
)

// Message keys.
const (
	MsgUserNotFound         = "user_not_found"
	MsgRegionNotFound       = "region_not_found"
	MsgInvalidUserData      = "invalid_user_data"
	MsgInvalidRegionData    = "invalid_region_data"
	MsgAddressOrCoordinates = "address_or_coordinates"
	MsgInvalidPolygon       = "invalid_polygon"
	MsgInvalidData          = "invalid_data"
	MsgInvalidRequestBody   = "invalid_request_body"
	MsgAddressNotFound      = "address_not_found"
	MsgCoordinatesNotFound  = "coordinates_not_found"
	MsgInvalidAddress       = "invalid_address"
	MsgInvalidCoordinates   = "invalid_coordinates"
	MsgGeoService           = "geo_service_error"
	MsgGeoTimeout           = "geo_timeout"
	MsgInternal             = "internal_error"
	MsgUserUpdated          = "user_updated"
	MsgUserDeleted          = "user_deleted"
	MsgRegionDeleted        = "region_deleted"
	MsgServiceUnavailable   = "service_unavailable"
)

const (
	defaultLocale    = "en"
	portugueseLocale = "pt_BR"
	mongoIDTag       = "mongodb"
)

var catalogue = map[string]map[string]string{
	defaultLocale: {
		MsgUserNotFound:         "User not found",
		MsgRegionNotFound:       "Region not found",
		MsgInvalidUserData:      "Name, email and (address or coordinates) are required",
		MsgInvalidRegionData:    "Name and boundary are required",
		MsgAddressOrCoordinates: "You must provide either an address or coordinates, but not both",
		MsgInvalidPolygon:       "Boundary must be a closed GeoJSON Polygon",
		MsgInvalidData:          "Invalid data",
		MsgInvalidRequestBody:   "Invalid request body",
		MsgAddressNotFound:      "Address not found",
		MsgCoordinatesNotFound:  "Coordinates not found",
		MsgInvalidAddress:       "Address must not be empty",
		MsgInvalidCoordinates:   "Coordinates must be valid numbers",
		MsgGeoService:           "Failed to reach the geocoding service",
		MsgGeoTimeout:           "The geocoding service timed out",
		MsgInternal:             "Something went wrong",
		MsgUserUpdated:          "User updated successfully",
		MsgUserDeleted:          "User deleted successfully",
		MsgRegionDeleted:        "Region deleted successfully",
		MsgServiceUnavailable:   "Service unavailable",
	},
	portugueseLocale: {
		MsgUserNotFound:         "Usuário não encontrado",
		MsgRegionNotFound:       "Região não encontrada",
		MsgInvalidUserData:      "Nome, e-mail e (endereço ou coordenadas) são obrigatórios",
		MsgInvalidRegionData:    "Nome e limites são obrigatórios",
		MsgAddressOrCoordinates: "Informe o endereço ou as coordenadas, mas não ambos",
		MsgInvalidPolygon:       "Os limites devem ser um polígono GeoJSON fechado",
		MsgInvalidData:          "Dados inválidos",
		MsgInvalidRequestBody:   "Corpo da requisição inválido",
		MsgAddressNotFound:      "Endereço não encontrado",
		MsgCoordinatesNotFound:  "Coordenadas não encontradas",
		MsgInvalidAddress:       "O endereço não pode ser vazio",
		MsgInvalidCoordinates:   "As coordenadas devem ser números válidos",
		MsgGeoService:           "Falha ao buscar endereço",
		MsgGeoTimeout:           "Tempo esgotado ao consultar o serviço de geolocalização",
		MsgInternal:             "Algo deu errado",
		MsgUserUpdated:          "Usuário atualizado com sucesso",
		MsgUserDeleted:          "Usuário removido com sucesso",
		MsgRegionDeleted:        "Região removida com sucesso",
		MsgServiceUnavailable:   "Serviço indisponível",
	},
}

var mongoIDMessages = map[string]string{
	defaultLocale:    "{0} must be a valid identifier",
	portugueseLocale: "{0} deve ser um identificador válido",
}

// Translator validates payloads and translates messages.
type Translator struct {
	uni      *ut.UniversalTranslator
	validate *validator.Validate
}

// NewTranslator registers the English and Brazilian Portuguese catalogues.
func NewTranslator() (*Translator, error) {
	english := en.New()
	uni := ut.New(english, english, pt_BR.New())

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	registerDefaults := map[string]func(*validator.Validate, ut.Translator) error{
		defaultLocale:    en_translations.RegisterDefaultTranslations,
		portugueseLocale: pt_BR_translations.RegisterDefaultTranslations,
	}

	for locale, messages := range catalogue {
		trans, found := uni.GetTranslator(locale)
		if !found {
			return nil, fmt.Errorf("missing translator for locale %s", locale)
		}

		if err := registerDefaults[locale](validate, trans); err != nil {
			return nil, fmt.Errorf("failed to register %s validation messages: %w", locale, err)
		}

		for key, text := range messages {
			if err := trans.Add(key, text, false); err != nil {
				return nil, fmt.Errorf("failed to add %s message %s: %w", locale, key, err)
			}
		}

		err := validate.RegisterTranslation(mongoIDTag, trans, func(trans ut.Translator) error {
			return trans.Add(mongoIDTag, mongoIDMessages[locale], false)
		}, func(trans ut.Translator, fe validator.FieldError) string {
			msg, _ := trans.T(mongoIDTag, fe.Field())
			return msg
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register %s identifier message: %w", locale, err)
		}
	}

	return &Translator{uni: uni, validate: validate}, nil
}

// For picks the best supported translator for an Accept-Language header,
// falling back to English.
func (t *Translator) For(acceptLanguage string) ut.Translator {
	var locales []string
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		tag = strings.ReplaceAll(tag, "-", "_")
		if tag == "" || tag == "*" {
			continue
		}
		if strings.EqualFold(tag, "pt") || strings.HasPrefix(strings.ToLower(tag), "pt_") {
			tag = portugueseLocale
		}
		if strings.HasPrefix(strings.ToLower(tag), "en") {
			tag = defaultLocale
		}
		locales = append(locales, tag)
	}

	trans, _ := t.uni.FindTranslator(locales...)
	return trans
}

// Message returns the translation of key, or key itself when unknown.
func (t *Translator) Message(trans ut.Translator, key string) string {
	msg, err := trans.T(key)
	if err != nil || msg == "" {
		return key
	}
	return msg
}

// Struct validates s against its validate tags.
func (t *Translator) Struct(s any) error {
	return t.validate.Struct(s)
}

// ValidationMessage renders a validation failure. It returns false when err
// did not come from Struct.
func (t *Translator) ValidationMessage(trans ut.Translator, err error) (string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "", false
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fe.Translate(trans))
	}

	return strings.Join(messages, "; "), true
}
