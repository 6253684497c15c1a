package proxy

import (
	"strings"

	"github.com/MarcoABCardoso/ibmid-login/resources"
)

// Kind is the resolution strategy chosen for a resource. It is derived once
// per request and dispatched on in a single switch.
type Kind int

const (
	// KindSystemNamespace identifiers name a serverless system namespace and
	// never exist in the resource directory.
	KindSystemNamespace Kind = iota
	// KindAlias identifiers map to a fixed base URL.
	KindAlias
	KindServerless
	KindDataPlatform
	KindAssistant
	KindSpeechToText
	// KindKeyed resources are reached through the URL in their best key.
	KindKeyed
)

const (
	systemNamespaceMarker = "whisk.system"
	serverlessServiceID   = "functions"
	dataPlatformCRNMarker = "data-science-experience"
	assistantIDMarker     = "conversation"
	speechToTextIDMarker  = "speech-to-text"
)

func (k Kind) String() string {
	switch k {
	case KindSystemNamespace:
		return "system_namespace"
	case KindAlias:
		return "alias"
	case KindServerless:
		return "serverless"
	case KindDataPlatform:
		return "data_platform"
	case KindAssistant:
		return "assistant"
	case KindSpeechToText:
		return "speech_to_text"
	case KindKeyed:
		return "keyed"
	default:
		return "unknown"
	}
}

// identifierKind classifies a resource from its identifier alone. ok is false
// when the instance has to be looked up.
func (r *Resolver) identifierKind(resourceID string) (Kind, bool) {
	if strings.Contains(resourceID, systemNamespaceMarker) {
		return KindSystemNamespace, true
	}
	if _, ok := r.aliases[resourceID]; ok {
		return KindAlias, true
	}
	return 0, false
}

// instanceKind classifies a looked up instance. Checks run in priority order.
func instanceKind(instance resources.Instance) Kind {
	switch {
	case instance.ResourceID == serverlessServiceID:
		return KindServerless
	case strings.Contains(instance.CRN, dataPlatformCRNMarker):
		return KindDataPlatform
	case strings.Contains(instance.ID, assistantIDMarker):
		return KindAssistant
	case strings.Contains(instance.ID, speechToTextIDMarker):
		return KindSpeechToText
	default:
		return KindKeyed
	}
}
