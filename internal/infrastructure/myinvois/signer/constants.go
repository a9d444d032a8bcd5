// Constantes para la firma XAdES de documentos MyInvois versión 1.1.

package signer

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	NamespaceSig       = "urn:oasis:names:specification:ubl:schema:xsd:CommonSignatureComponents-2"
	NamespaceSac       = "urn:oasis:names:specification:ubl:schema:xsd:SignatureAggregateComponents-2"
	NamespaceSbc       = "urn:oasis:names:specification:ubl:schema:xsd:SignatureBasicComponents-2"
	AlgC14N11          = "http://www.w3.org/2006/12/xml-c14n11"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformXPath     = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	TypeSignedProps    = "http://uri.etsi.org/01903/v1.3.2#SignedProperties"
	SignatureMethodUBL = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
)

// IDs referenciados desde SignedInfo.
const (
	SignatureID        = "signature"
	SignedPropsID      = "id-xades-signed-props"
	DocSignedDataRefID = "id-doc-signed-data"
	SignatureInfoID    = "urn:oasis:names:specification:ubl:signature:1"
	SignatureRefID     = "urn:oasis:names:specification:ubl:signature:Invoice"
)
